package services

import (
	"github.com/shopspring/decimal"

	"ticket-market/internal/status"
)

// Money columns are NUMERIC(15,2) on Postgres. Amounts outside that shape
// are rejected up front so both stores keep identical values.
var (
	MaxBalance = decimal.RequireFromString("9999999999999.99")
	MaxPrice   = decimal.NewFromInt(1_000_000_000)
)

// checkAmount reports a validation error unless amount is positive with at
// most two decimal places.
func checkAmount(name string, amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return status.Newf(status.KindValidation, "%s must be positive", name)
	case !amount.Equal(amount.Round(2)):
		return status.Newf(status.KindValidation, "%s must have at most two decimal places", name)
	}
	return nil
}
