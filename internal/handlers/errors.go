package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
)

// apiError turns a service error into the PocketBase error response for its
// kind. Internal failures are logged and answered with a generic message.
func apiError(e *core.RequestEvent, err error) error {
	msg := status.Message(err)

	switch status.KindOf(err) {
	case status.KindValidation, status.KindInsufficientFunds, status.KindInsufficientStock:
		return apis.NewBadRequestError(msg, nil)
	case status.KindNotFound:
		return apis.NewNotFoundError(msg, nil)
	case status.KindUnauthorized:
		return apis.NewForbiddenError(msg, nil)
	case status.KindConflict:
		return apis.NewApiError(http.StatusConflict, msg, nil)
	default:
		slog.Error("request failed",
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"error", err,
		)
		return apis.NewInternalServerError(msg, nil)
	}
}

func requireAuth(e *core.RequestEvent) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return e.Auth.Id, nil
}
