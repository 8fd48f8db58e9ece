package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-market/internal/status"
	"ticket-market/internal/store"
	"ticket-market/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotifyParams struct {
	UserID      string
	Type        models.NotificationType
	Title       string
	Message     string
	OrderID     string
	TicketCodes []string
}

// Notifier appends notification rows inside the caller's unit of work.
// There is no dedup and no retry.
type Notifier struct {
	db            *store.DB
	notifications store.NotificationRepo
}

func NewNotifier(db *store.DB) *Notifier {
	return &Notifier{
		db:            db,
		notifications: store.NewNotificationRepo(db),
	}
}

// Notify writes one notification and returns it with its id.
func (n *Notifier) Notify(ctx context.Context, q dbx.Builder, params NotifyParams) (*models.Notification, error) {
	codes := params.TicketCodes
	if codes == nil {
		codes = []string{}
	}

	notification := &models.Notification{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		OrderID:     params.OrderID,
		TicketCodes: codes,
		Created:     types.NowDateTime(),
	}
	if err := n.notifications.Create(ctx, q, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (n *Notifier) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	limit = min(limit, maxNotificationLimit)
	return n.notifications.List(ctx, n.db.Builder(), userID, limit)
}

func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int, error) {
	return n.notifications.CountUnread(ctx, n.db.Builder(), userID)
}

func (n *Notifier) MarkRead(ctx context.Context, userID, id string) error {
	return notFound(n.notifications.MarkRead(ctx, n.db.Builder(), userID, id), "notification not found")
}

func (n *Notifier) Delete(ctx context.Context, userID, id string) error {
	return notFound(n.notifications.Delete(ctx, n.db.Builder(), userID, id), "notification not found")
}

func (n *Notifier) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return n.notifications.DeleteAll(ctx, n.db.Builder(), userID)
}

func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return status.New(status.KindNotFound, message)
	}
	return err
}
