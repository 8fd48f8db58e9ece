package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const OrderStatusCompleted = "completed"

type Order struct {
	ID             string          `db:"id" json:"id"`
	BuyerID        string          `db:"buyer_id" json:"buyer_id"`
	TicketID       string          `db:"ticket_id" json:"ticket_id"`
	Quantity       int             `db:"quantity" json:"quantity"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	WalletType     WalletType      `db:"wallet_type" json:"wallet_type"`
	Status         string          `db:"status" json:"status"`
	IsSent         bool            `db:"is_sent" json:"is_sent"`
	IdempotencyKey string          `db:"idempotency_key" json:"-"`
	Created        types.DateTime  `db:"created" json:"created"`
	Updated        types.DateTime  `db:"updated" json:"updated"`
}

// OrderView is an order joined with the listing it was bought from.
type OrderView struct {
	Order
	SellerID    string         `db:"seller_id" json:"seller_id"`
	TicketTitle string         `db:"ticket_title" json:"ticket_title"`
	Venue       string         `db:"venue" json:"venue"`
	EventDate   types.DateTime `db:"event_date" json:"event_date"`
}
