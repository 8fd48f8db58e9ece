package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-market/models"
)

const orderColumns = "id, buyer_id, ticket_id, quantity, total_price, wallet_type, status, is_sent, idempotency_key, created, updated"

const orderViewQuery = `SELECT o.id, o.buyer_id, o.ticket_id, o.quantity, o.total_price, o.wallet_type, o.status,
	o.is_sent, o.idempotency_key, o.created, o.updated,
	t.seller_id, t.title AS ticket_title, t.venue, t.event_date
	FROM orders o JOIN tickets t ON t.id = o.ticket_id`

type OrderRepo struct {
	db *DB
}

func NewOrderRepo(db *DB) OrderRepo {
	return OrderRepo{db: db}
}

func (r OrderRepo) Create(ctx context.Context, q dbx.Builder, order *models.Order) error {
	_, err := q.Insert("orders", dbx.Params{
		"id":              order.ID,
		"buyer_id":        order.BuyerID,
		"ticket_id":       order.TicketID,
		"quantity":        order.Quantity,
		"total_price":     order.TotalPrice,
		"wallet_type":     string(order.WalletType),
		"status":          order.Status,
		"is_sent":         order.IsSent,
		"idempotency_key": order.IdempotencyKey,
		"created":         order.Created,
		"updated":         order.Updated,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("inserting order %s: %w", order.ID, err)
	}
	return nil
}

func (r OrderRepo) Get(ctx context.Context, q dbx.Builder, id string) (*models.Order, error) {
	return r.one(ctx, q, "id = {:id}", dbx.Params{"id": id}, "")
}

// Lock reads the order row and holds its lock until the transaction ends.
func (r OrderRepo) Lock(ctx context.Context, q dbx.Builder, id string) (*models.Order, error) {
	return r.one(ctx, q, "id = {:id}", dbx.Params{"id": id}, r.db.forUpdate())
}

func (r OrderRepo) FindByIdempotencyKey(ctx context.Context, q dbx.Builder, buyerID, key string) (*models.Order, error) {
	return r.one(ctx, q, "buyer_id = {:buyer_id} AND idempotency_key = {:key}",
		dbx.Params{"buyer_id": buyerID, "key": key}, "")
}

func (r OrderRepo) one(ctx context.Context, q dbx.Builder, where string, params dbx.Params, lock string) (*models.Order, error) {
	var order models.Order
	err := q.NewQuery("SELECT " + orderColumns + " FROM orders WHERE " + where + lock).
		Bind(params).
		WithContext(ctx).
		One(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting order: %w", err)
	}
	return &order, nil
}

// MarkSent flips is_sent once. A second call returns ErrStale.
func (r OrderRepo) MarkSent(ctx context.Context, q dbx.Builder, id string) error {
	res, err := q.NewQuery(`UPDATE orders SET is_sent = TRUE, updated = {:updated}
		WHERE id = {:id} AND is_sent = FALSE`).
		Bind(dbx.Params{"id": id, "updated": types.NowDateTime()}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("marking order %s sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking order %s sent: %w", id, err)
	}
	if n != 1 {
		return ErrStale
	}
	return nil
}

// ListByBuyer returns the buyer's orders newest first.
func (r OrderRepo) ListByBuyer(ctx context.Context, q dbx.Builder, buyerID string) ([]models.OrderView, error) {
	return r.views(ctx, q, "o.buyer_id = {:user_id}", buyerID)
}

// ListBySeller returns orders placed against the seller's listings newest first.
func (r OrderRepo) ListBySeller(ctx context.Context, q dbx.Builder, sellerID string) ([]models.OrderView, error) {
	return r.views(ctx, q, "t.seller_id = {:user_id}", sellerID)
}

func (r OrderRepo) views(ctx context.Context, q dbx.Builder, where, userID string) ([]models.OrderView, error) {
	orders := []models.OrderView{}
	err := q.NewQuery(orderViewQuery + " WHERE " + where + " ORDER BY o.created DESC, o.id").
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		All(&orders)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", userID, err)
	}
	return orders, nil
}

// CountUnsent counts orders still waiting for their codes.
func (r OrderRepo) CountUnsent(ctx context.Context, q dbx.Builder) (int, error) {
	var count int
	err := q.NewQuery("SELECT COUNT(*) FROM orders WHERE is_sent = FALSE").
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unsent orders: %w", err)
	}
	return count, nil
}

// CountByTicket counts every order ever placed for the ticket.
func (r OrderRepo) CountByTicket(ctx context.Context, q dbx.Builder, ticketID string) (int, error) {
	var count int
	err := q.NewQuery("SELECT COUNT(*) FROM orders WHERE ticket_id = {:ticket_id}").
		Bind(dbx.Params{"ticket_id": ticketID}).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("counting orders for ticket %s: %w", ticketID, err)
	}
	return count, nil
}
