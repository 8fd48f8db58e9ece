package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

type Ticket struct {
	ID                string          `db:"id" json:"id"`
	SellerID          string          `db:"seller_id" json:"seller_id"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	Venue             string          `db:"venue" json:"venue"`
	EventDate         types.DateTime  `db:"event_date" json:"event_date"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Quantity          int             `db:"quantity" json:"quantity"`
	RemainingQuantity int             `db:"remaining_quantity" json:"remaining_quantity"`
	Created           types.DateTime  `db:"created" json:"created"`
	Updated           types.DateTime  `db:"updated" json:"updated"`
}

func (t *Ticket) SoldOut() bool {
	return t.RemainingQuantity <= 0
}

// TicketCode is a redeemable code issued for one purchased unit.
type TicketCode struct {
	ID      string         `db:"id" json:"id"`
	OrderID string         `db:"order_id" json:"order_id"`
	Code    string         `db:"code" json:"code"`
	IsUsed  bool           `db:"is_used" json:"is_used"`
	Created types.DateTime `db:"created" json:"created"`
}
