package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletType_Valid(t *testing.T) {
	tests := []struct {
		name       string
		walletType WalletType
		expected   bool
	}{
		{"DindaPay", WalletDindaPay, true},
		{"ErwinPay", WalletErwinPay, true},
		{"RendiPay", WalletRendiPay, true},
		{"Lowercase", WalletType("dindapay"), false},
		{"Empty", WalletType(""), false},
		{"Unknown", WalletType("GoPay"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.walletType.Valid())
		})
	}
}

func TestWalletTypes_SortedForLockOrder(t *testing.T) {
	for i := 1; i < len(WalletTypes); i++ {
		assert.Less(t, string(WalletTypes[i-1]), string(WalletTypes[i]))
	}
}

func TestTicket_SoldOut(t *testing.T) {
	ticket := Ticket{Quantity: 2, RemainingQuantity: 1}
	assert.False(t, ticket.SoldOut())

	ticket.RemainingQuantity = 0
	assert.True(t, ticket.SoldOut())
}

func TestOrder_HidesIdempotencyKey(t *testing.T) {
	order := Order{
		ID:             "order-1",
		TotalPrice:     decimal.NewFromInt(200000),
		IdempotencyKey: "retry-123",
	}

	data, err := json.Marshal(order)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "retry-123")
	assert.Contains(t, string(data), `"total_price":"200000"`)
}

func TestNotification_EmptyCodesEncodeAsArray(t *testing.T) {
	data, err := json.Marshal(Notification{ID: "n-1"})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"ticket_codes":[]`)
}
