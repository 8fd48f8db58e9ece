package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"

	"ticket-market/models"
)

const notificationColumns = "id, user_id, type, title, message, order_id, ticket_codes, is_read, created"

type NotificationRepo struct {
	db *DB
}

func NewNotificationRepo(db *DB) NotificationRepo {
	return NotificationRepo{db: db}
}

func (r NotificationRepo) Create(ctx context.Context, q dbx.Builder, n *models.Notification) error {
	if n.TicketCodes == nil {
		n.TicketCodes = []string{}
	}
	_, err := q.Insert("notifications", dbx.Params{
		"id":           n.ID,
		"user_id":      n.UserID,
		"type":         string(n.Type),
		"title":        n.Title,
		"message":      n.Message,
		"order_id":     n.OrderID,
		"ticket_codes": n.TicketCodes,
		"is_read":      n.IsRead,
		"created":      n.Created,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("inserting notification for %s: %w", n.UserID, err)
	}
	return nil
}

// List returns the user's latest notifications, newest first.
func (r NotificationRepo) List(ctx context.Context, q dbx.Builder, userID string, limit int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := q.NewQuery(fmt.Sprintf("SELECT %s FROM notifications WHERE user_id = {:user_id} ORDER BY created DESC, id LIMIT %d", notificationColumns, limit)).
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		All(&notifications)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	return notifications, nil
}

func (r NotificationRepo) CountUnread(ctx context.Context, q dbx.Builder, userID string) (int, error) {
	var count int
	err := q.NewQuery("SELECT COUNT(*) FROM notifications WHERE user_id = {:user_id} AND is_read = FALSE").
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications for %s: %w", userID, err)
	}
	return count, nil
}

// MarkRead returns ErrNotFound unless the notification belongs to the user.
func (r NotificationRepo) MarkRead(ctx context.Context, q dbx.Builder, userID, id string) error {
	return r.affectOne(ctx, q, "UPDATE notifications SET is_read = TRUE WHERE id = {:id} AND user_id = {:user_id}", userID, id)
}

// Delete returns ErrNotFound unless the notification belongs to the user.
func (r NotificationRepo) Delete(ctx context.Context, q dbx.Builder, userID, id string) error {
	return r.affectOne(ctx, q, "DELETE FROM notifications WHERE id = {:id} AND user_id = {:user_id}", userID, id)
}

func (r NotificationRepo) affectOne(ctx context.Context, q dbx.Builder, stmt, userID, id string) error {
	res, err := q.NewQuery(stmt).
		Bind(dbx.Params{"id": id, "user_id": userID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r NotificationRepo) DeleteAll(ctx context.Context, q dbx.Builder, userID string) (int64, error) {
	res, err := q.NewQuery("DELETE FROM notifications WHERE user_id = {:user_id}").
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("deleting notifications for %s: %w", userID, err)
	}
	return res.RowsAffected()
}
