package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-market/models"
)

const ticketColumns = "id, seller_id, title, description, venue, event_date, price, quantity, remaining_quantity, created, updated"

type TicketFilter struct {
	SellerID string
	Search   string
	Limit    int
}

type TicketRepo struct {
	db *DB
}

func NewTicketRepo(db *DB) TicketRepo {
	return TicketRepo{db: db}
}

func (r TicketRepo) Create(ctx context.Context, q dbx.Builder, ticket *models.Ticket) error {
	_, err := q.Insert("tickets", dbx.Params{
		"id":                 ticket.ID,
		"seller_id":          ticket.SellerID,
		"title":              ticket.Title,
		"description":        ticket.Description,
		"venue":              ticket.Venue,
		"event_date":         ticket.EventDate,
		"price":              ticket.Price,
		"quantity":           ticket.Quantity,
		"remaining_quantity": ticket.RemainingQuantity,
		"created":            ticket.Created,
		"updated":            ticket.Updated,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("inserting ticket %s: %w", ticket.ID, err)
	}
	return nil
}

// Update rewrites the editable listing fields. Price and id never change.
func (r TicketRepo) Update(ctx context.Context, q dbx.Builder, ticket *models.Ticket) error {
	res, err := q.Update("tickets", dbx.Params{
		"title":              ticket.Title,
		"description":        ticket.Description,
		"venue":              ticket.Venue,
		"event_date":         ticket.EventDate,
		"quantity":           ticket.Quantity,
		"remaining_quantity": ticket.RemainingQuantity,
		"updated":            ticket.Updated,
	}, dbx.HashExp{"id": ticket.ID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("updating ticket %s: %w", ticket.ID, err)
	}
	return expectOneRow(res, "updating ticket "+ticket.ID)
}

func (r TicketRepo) Delete(ctx context.Context, q dbx.Builder, id string) error {
	res, err := q.Delete("tickets", dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("deleting ticket %s: %w", id, err)
	}
	return expectOneRow(res, "deleting ticket "+id)
}

func (r TicketRepo) Get(ctx context.Context, q dbx.Builder, id string) (*models.Ticket, error) {
	return r.get(ctx, q, id, "")
}

// Lock reads the ticket row and holds its lock until the transaction ends.
func (r TicketRepo) Lock(ctx context.Context, q dbx.Builder, id string) (*models.Ticket, error) {
	return r.get(ctx, q, id, r.db.forUpdate())
}

func (r TicketRepo) get(ctx context.Context, q dbx.Builder, id string, lock string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := q.NewQuery("SELECT " + ticketColumns + " FROM tickets WHERE id = {:id}" + lock).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&ticket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting ticket %s: %w", id, err)
	}
	return &ticket, nil
}

// List returns listings newest first.
func (r TicketRepo) List(ctx context.Context, q dbx.Builder, filter TicketFilter) ([]models.Ticket, error) {
	var (
		where  []string
		params = dbx.Params{}
	)
	if filter.SellerID != "" {
		where = append(where, "seller_id = {:seller_id}")
		params["seller_id"] = filter.SellerID
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "(LOWER(title) LIKE {:title} OR LOWER(venue) LIKE {:venue} OR LOWER(description) LIKE {:description})")
		pattern := "%" + strings.ToLower(search) + "%"
		params["title"] = pattern
		params["venue"] = pattern
		params["description"] = pattern
	}

	sqlText := "SELECT " + ticketColumns + " FROM tickets"
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY created DESC, id"
	if filter.Limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	tickets := []models.Ticket{}
	if err := q.NewQuery(sqlText).Bind(params).WithContext(ctx).All(&tickets); err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	return tickets, nil
}

// DecrementStock takes quantity units from the ticket. The row is left
// untouched and ErrStale returned if fewer units remain.
func (r TicketRepo) DecrementStock(ctx context.Context, q dbx.Builder, id string, quantity int) error {
	res, err := q.NewQuery(`UPDATE tickets
		SET remaining_quantity = remaining_quantity - {:quantity}, updated = {:updated}
		WHERE id = {:id} AND remaining_quantity >= {:available}`).
		Bind(dbx.Params{
			"id":        id,
			"quantity":  quantity,
			"available": quantity,
			"updated":   types.NowDateTime(),
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("decrementing ticket %s stock: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrementing ticket %s stock: %w", id, err)
	}
	if n != 1 {
		return ErrStale
	}
	return nil
}
