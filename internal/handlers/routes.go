package handlers

import (
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/pocketbase/pocketbase/tools/router"

	"ticket-market/internal/services"
)

type Handlers struct {
	Settlement   *SettlementHandler
	Wallet       *WalletHandler
	Ticket       *TicketHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
}

func NewHandlers(settlement *services.Settlement) *Handlers {
	return &Handlers{
		Settlement:   NewSettlementHandler(settlement),
		Wallet:       NewWalletHandler(settlement),
		Ticket:       NewTicketHandler(settlement.Inventory()),
		Notification: NewNotificationHandler(settlement.Notifier()),
		Admin:        NewAdminHandler(settlement),
	}
}

// Register mounts the marketplace API under /api/v1. limiter guards the
// endpoints that move money and may be nil.
func (h *Handlers) Register(r *router.Router[*core.RequestEvent], limiter *hook.Handler[*core.RequestEvent]) {
	v1 := r.Group("/api/v1")

	// Listings
	v1.GET("/tickets", h.Ticket.List)
	v1.GET("/tickets/{id}", h.Ticket.Get)

	authed := v1.Group("")
	authed.Bind(apis.RequireAuth())

	guarded := authed.Group("")
	if limiter != nil {
		guarded.Bind(limiter)
	}

	// Settlement
	guarded.POST("/purchase", h.Settlement.Purchase)
	guarded.POST("/fulfill", h.Settlement.Fulfill)
	guarded.POST("/wallets/topup", h.Wallet.TopUp)
	authed.GET("/orders", h.Settlement.Orders)

	// Wallets
	authed.GET("/wallets", h.Wallet.Wallets)
	authed.GET("/wallets/transactions", h.Wallet.Transactions)

	authed.POST("/tickets", h.Ticket.Create)
	authed.PUT("/tickets/{id}", h.Ticket.Update)
	authed.DELETE("/tickets/{id}", h.Ticket.Delete)

	// Notifications
	authed.GET("/notifications", h.Notification.List)
	authed.GET("/notifications/unread", h.Notification.Unread)
	authed.POST("/notifications/{id}/read", h.Notification.MarkRead)
	authed.DELETE("/notifications/{id}", h.Notification.Delete)
	authed.DELETE("/notifications", h.Notification.DeleteAll)

	// Admin
	admin := v1.Group("/admin")
	admin.Bind(apis.RequireSuperuserAuth())
	admin.POST("/wallets/reset", h.Admin.ResetWallets)
}
