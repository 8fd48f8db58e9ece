package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-market/internal/services"
	"ticket-market/models"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type SettlementHandler struct {
	settlement *services.Settlement
}

func NewSettlementHandler(settlement *services.Settlement) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

type purchaseRequest struct {
	TicketID   string            `json:"ticketId"`
	Quantity   int               `json:"quantity"`
	WalletType models.WalletType `json:"walletType"`
}

type purchaseResponse struct {
	Success    bool            `json:"success"`
	OrderID    string          `json:"orderId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Replayed   bool            `json:"replayed,omitempty"`
}

// Purchase - buy tickets with one of the caller's wallets
func (h *SettlementHandler) Purchase(e *core.RequestEvent) error {
	buyerID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req purchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	result, err := h.settlement.Purchase(e.Request.Context(), services.PurchaseRequest{
		BuyerID:        buyerID,
		TicketID:       req.TicketID,
		Quantity:       req.Quantity,
		WalletType:     req.WalletType,
		IdempotencyKey: e.Request.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, purchaseResponse{
		Success:    true,
		OrderID:    result.Order.ID,
		TotalPrice: result.Order.TotalPrice,
		Replayed:   result.Replayed,
	})
}

type fulfillRequest struct {
	OrderID string `json:"orderId"`
}

// Fulfill - seller sends the ticket codes for an order
func (h *SettlementHandler) Fulfill(e *core.RequestEvent) error {
	sellerID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req fulfillRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	result, err := h.settlement.Fulfill(e.Request.Context(), req.OrderID, sellerID)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"orderId":     result.OrderID,
		"ticketCodes": result.TicketCodes,
	})
}

// Orders - purchase history, or sales when asSeller=true
func (h *SettlementHandler) Orders(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	asSeller := false
	if raw := e.Request.URL.Query().Get("asSeller"); raw != "" {
		if asSeller, err = strconv.ParseBool(raw); err != nil {
			return apis.NewBadRequestError("asSeller must be true or false", err)
		}
	}

	orders, err := h.settlement.Orders(e.Request.Context(), userID, asSeller)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, orders)
}
