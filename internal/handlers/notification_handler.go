package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/services"
)

type NotificationHandler struct {
	notifier *services.Notifier
}

func NewNotificationHandler(notifier *services.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

func (h *NotificationHandler) List(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(e.Request.URL.Query().Get("limit"))
	notifications, err := h.notifier.List(e.Request.Context(), userID, limit)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) Unread(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	count, err := h.notifier.UnreadCount(e.Request.Context(), userID)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkRead(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	if err := h.notifier.MarkRead(e.Request.Context(), userID, e.Request.PathValue("id")); err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *NotificationHandler) Delete(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	if err := h.notifier.Delete(e.Request.Context(), userID, e.Request.PathValue("id")); err != nil {
		return apiError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	deleted, err := h.notifier.DeleteAll(e.Request.Context(), userID)
	if err != nil {
		return apiError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}
