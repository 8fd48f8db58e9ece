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

type WalletHandler struct {
	settlement *services.Settlement
}

func NewWalletHandler(settlement *services.Settlement) *WalletHandler {
	return &WalletHandler{settlement: settlement}
}

type walletResponse struct {
	ID         string            `json:"id"`
	WalletType models.WalletType `json:"walletType"`
	Balance    decimal.Decimal   `json:"balance"`
}

func toWalletResponse(w models.Wallet) walletResponse {
	return walletResponse{ID: w.ID, WalletType: w.WalletType, Balance: w.Balance}
}

func toWalletResponses(wallets []models.Wallet) []walletResponse {
	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, toWalletResponse(w))
	}
	return out
}

// Wallets - list the caller's wallets, creating missing ones
func (h *WalletHandler) Wallets(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	wallets, err := h.settlement.Wallets(e.Request.Context(), userID)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, toWalletResponses(wallets))
}

type topUpRequest struct {
	WalletType models.WalletType `json:"walletType"`
	Amount     decimal.Decimal   `json:"amount"`
}

// TopUp - add funds to one of the caller's wallets
func (h *WalletHandler) TopUp(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var req topUpRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	wallet, err := h.settlement.TopUp(e.Request.Context(), userID, req.WalletType, req.Amount)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"wallet":  toWalletResponse(*wallet),
	})
}

// Transactions - latest ledger rows of the caller
func (h *WalletHandler) Transactions(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(e.Request.URL.Query().Get("limit"))
	txs, err := h.settlement.Transactions(e.Request.Context(), userID, limit)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, txs)
}
