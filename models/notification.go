package models

import "github.com/pocketbase/pocketbase/tools/types"

type NotificationType string

const (
	NotificationPurchase       NotificationType = "purchase"
	NotificationSale           NotificationType = "sale"
	NotificationTicketReceived NotificationType = "ticket_received"
	NotificationTicketSent     NotificationType = "ticket_sent"
	NotificationTopUp          NotificationType = "topup_success"
)

type Notification struct {
	ID          string                  `db:"id" json:"id"`
	UserID      string                  `db:"user_id" json:"user_id"`
	Type        NotificationType        `db:"type" json:"type"`
	Title       string                  `db:"title" json:"title"`
	Message     string                  `db:"message" json:"message"`
	OrderID     string                  `db:"order_id" json:"order_id,omitempty"`
	TicketCodes types.JSONArray[string] `db:"ticket_codes" json:"ticket_codes"`
	IsRead      bool                    `db:"is_read" json:"is_read"`
	Created     types.DateTime          `db:"created" json:"created"`
}
