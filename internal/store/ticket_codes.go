package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-market/models"
)

type TicketCodeRepo struct {
	db *DB
}

func NewTicketCodeRepo(db *DB) TicketCodeRepo {
	return TicketCodeRepo{db: db}
}

// CreateAll persists one unused code row per code.
func (r TicketCodeRepo) CreateAll(ctx context.Context, q dbx.Builder, orderID string, codes []string) ([]models.TicketCode, error) {
	now := types.NowDateTime()
	rows := make([]models.TicketCode, 0, len(codes))
	for _, code := range codes {
		row := models.TicketCode{
			ID:      uuid.NewString(),
			OrderID: orderID,
			Code:    code,
			Created: now,
		}
		_, err := q.Insert("ticket_codes", dbx.Params{
			"id":       row.ID,
			"order_id": row.OrderID,
			"code":     row.Code,
			"is_used":  false,
			"created":  row.Created,
		}).WithContext(ctx).Execute()
		if err != nil {
			return nil, fmt.Errorf("inserting code for order %s: %w", orderID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r TicketCodeRepo) ListByOrder(ctx context.Context, q dbx.Builder, orderID string) ([]models.TicketCode, error) {
	codes := []models.TicketCode{}
	err := q.NewQuery("SELECT id, order_id, code, is_used, created FROM ticket_codes WHERE order_id = {:order_id} ORDER BY created, code").
		Bind(dbx.Params{"order_id": orderID}).
		WithContext(ctx).
		All(&codes)
	if err != nil {
		return nil, fmt.Errorf("listing codes for order %s: %w", orderID, err)
	}
	return codes, nil
}
