package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/services"
)

type AdminHandler struct {
	settlement *services.Settlement
}

func NewAdminHandler(settlement *services.Settlement) *AdminHandler {
	return &AdminHandler{settlement: settlement}
}

type resetWalletsRequest struct {
	UserID string `json:"userId"`
}

// ResetWallets - zero every wallet of a user
func (h *AdminHandler) ResetWallets(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}

	var req resetWalletsRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	wallets, err := h.settlement.ResetWallets(e.Request.Context(), req.UserID)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"userId":  req.UserID,
		"wallets": toWalletResponses(wallets),
	})
}
