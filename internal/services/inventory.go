package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"ticket-market/internal/status"
	"ticket-market/internal/store"
	"ticket-market/models"
)

const defaultTicketListLimit = 100

type CreateTicketParams struct {
	SellerID    string
	Title       string
	Description string
	Venue       string
	EventDate   time.Time
	Price       decimal.Decimal
	Quantity    int
}

func (p CreateTicketParams) Validate() error {
	switch {
	case p.SellerID == "":
		return status.New(status.KindValidation, "seller is required")
	case strings.TrimSpace(p.Title) == "":
		return status.New(status.KindValidation, "title is required")
	case p.EventDate.IsZero():
		return status.New(status.KindValidation, "event date is required")
	case p.Quantity < 1:
		return status.New(status.KindValidation, "quantity must be at least 1")
	}
	if err := checkAmount("price", p.Price); err != nil {
		return err
	}
	if !p.Price.LessThan(MaxPrice) {
		return status.Newf(status.KindValidation, "price must be below %s", MaxPrice.String())
	}
	return nil
}

// UpdateTicketParams carries the editable listing fields. The price is
// frozen at listing time: a Price that differs from the listed one is
// rejected. A zero Quantity keeps the current quantity.
type UpdateTicketParams struct {
	TicketID    string
	SellerID    string
	Title       string
	Description string
	Venue       string
	EventDate   time.Time
	Price       *decimal.Decimal
	Quantity    int
}

func (p UpdateTicketParams) Validate() error {
	switch {
	case p.TicketID == "":
		return status.New(status.KindValidation, "ticket is required")
	case p.SellerID == "":
		return status.New(status.KindValidation, "seller is required")
	case strings.TrimSpace(p.Title) == "":
		return status.New(status.KindValidation, "title is required")
	case p.EventDate.IsZero():
		return status.New(status.KindValidation, "event date is required")
	case p.Quantity < 0:
		return status.New(status.KindValidation, "quantity must not be negative")
	}
	return nil
}

// Inventory owns ticket stock. Reserve runs inside the coordinator's unit of
// work; the listing operations are plain reads and writes.
type Inventory struct {
	db      *store.DB
	tickets store.TicketRepo
	orders  store.OrderRepo
}

func NewInventory(db *store.DB) *Inventory {
	return &Inventory{
		db:      db,
		tickets: store.NewTicketRepo(db),
		orders:  store.NewOrderRepo(db),
	}
}

// Reserve takes quantity units from a ticket whose row lock the caller holds.
// On failure the row is left untouched.
func (i *Inventory) Reserve(ctx context.Context, q dbx.Builder, ticket *models.Ticket, quantity int) error {
	if quantity < 1 {
		return status.New(status.KindValidation, "quantity must be at least 1")
	}
	if ticket.RemainingQuantity < quantity {
		return status.Newf(status.KindInsufficientStock, "only %d tickets remaining", ticket.RemainingQuantity)
	}

	err := i.tickets.DecrementStock(ctx, q, ticket.ID, quantity)
	if errors.Is(err, store.ErrStale) {
		return status.New(status.KindInsufficientStock, "not enough tickets remaining")
	}
	if err != nil {
		return err
	}

	ticket.RemainingQuantity -= quantity
	return nil
}

func (i *Inventory) Create(ctx context.Context, params CreateTicketParams) (*models.Ticket, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := types.NowDateTime()
	eventDate, err := types.ParseDateTime(params.EventDate)
	if err != nil {
		return nil, status.Wrap(status.KindValidation, "invalid event date", err)
	}

	ticket := &models.Ticket{
		ID:                uuid.NewString(),
		SellerID:          params.SellerID,
		Title:             strings.TrimSpace(params.Title),
		Description:       params.Description,
		Venue:             params.Venue,
		EventDate:         eventDate,
		Price:             params.Price,
		Quantity:          params.Quantity,
		RemainingQuantity: params.Quantity,
		Created:           now,
		Updated:           now,
	}
	if err := i.tickets.Create(ctx, i.db.Builder(), ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (i *Inventory) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := i.tickets.Get(ctx, i.db.Builder(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, status.New(status.KindNotFound, "ticket not found")
	}
	return ticket, err
}

func (i *Inventory) List(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultTicketListLimit
	}
	return i.tickets.List(ctx, i.db.Builder(), filter)
}

// Update edits a listing under its row lock. Only the seller may edit it,
// and the quantity can never drop below the units already sold.
func (i *Inventory) Update(ctx context.Context, params UpdateTicketParams) (*models.Ticket, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	eventDate, err := types.ParseDateTime(params.EventDate)
	if err != nil {
		return nil, status.Wrap(status.KindValidation, "invalid event date", err)
	}

	var ticket *models.Ticket
	err = i.db.RunInTx(ctx, func(q dbx.Builder) error {
		locked, err := i.lockOwned(ctx, q, params.TicketID, params.SellerID)
		if err != nil {
			return err
		}

		if params.Price != nil && !params.Price.Equal(locked.Price) {
			return status.New(status.KindValidation, "price cannot be changed after listing")
		}
		if params.Quantity > 0 {
			sold := locked.Quantity - locked.RemainingQuantity
			if params.Quantity < sold {
				return status.Newf(status.KindValidation, "%d tickets are already sold", sold)
			}
			locked.RemainingQuantity = params.Quantity - sold
			locked.Quantity = params.Quantity
		}
		locked.Title = strings.TrimSpace(params.Title)
		locked.Description = params.Description
		locked.Venue = params.Venue
		locked.EventDate = eventDate
		locked.Updated = types.NowDateTime()

		if err := i.tickets.Update(ctx, q, locked); err != nil {
			return err
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	return ticket, nil
}

// Delete removes a listing nobody has bought from yet.
func (i *Inventory) Delete(ctx context.Context, ticketID, sellerID string) error {
	if ticketID == "" || sellerID == "" {
		return status.New(status.KindValidation, "ticket and seller are required")
	}

	err := i.db.RunInTx(ctx, func(q dbx.Builder) error {
		if _, err := i.lockOwned(ctx, q, ticketID, sellerID); err != nil {
			return err
		}

		orders, err := i.orders.CountByTicket(ctx, q, ticketID)
		if err != nil {
			return err
		}
		if orders > 0 {
			return status.New(status.KindConflict, "ticket has orders and cannot be deleted")
		}
		return i.tickets.Delete(ctx, q, ticketID)
	})
	return classify(ctx, err)
}

func (i *Inventory) lockOwned(ctx context.Context, q dbx.Builder, ticketID, sellerID string) (*models.Ticket, error) {
	ticket, err := i.tickets.Lock(ctx, q, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, status.New(status.KindNotFound, "ticket not found")
	}
	if err != nil {
		return nil, err
	}
	if ticket.SellerID != sellerID {
		return nil, status.New(status.KindUnauthorized, "only the seller can change this ticket")
	}
	return ticket, nil
}
