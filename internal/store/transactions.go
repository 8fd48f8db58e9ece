package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"

	"ticket-market/models"
)

type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) TransactionRepo {
	return TransactionRepo{db: db}
}

func (r TransactionRepo) Create(ctx context.Context, q dbx.Builder, tx *models.WalletTransaction) error {
	_, err := q.Insert("wallet_transactions", dbx.Params{
		"id":          tx.ID,
		"wallet_id":   tx.WalletID,
		"user_id":     tx.UserID,
		"wallet_type": string(tx.WalletType),
		"type":        string(tx.Type),
		"amount":      tx.Amount,
		"reference":   tx.Reference,
		"description": tx.Description,
		"created":     tx.Created,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("inserting %s transaction for wallet %s: %w", tx.Type, tx.WalletID, err)
	}
	return nil
}

// ListByUser returns the user's ledger rows newest first.
func (r TransactionRepo) ListByUser(ctx context.Context, q dbx.Builder, userID string, limit int) ([]models.WalletTransaction, error) {
	txs := []models.WalletTransaction{}
	err := q.NewQuery(fmt.Sprintf(`SELECT id, wallet_id, user_id, wallet_type, type, amount, reference, description, created
		FROM wallet_transactions WHERE user_id = {:user_id} ORDER BY created DESC, id LIMIT %d`, limit)).
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		All(&txs)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %s: %w", userID, err)
	}
	return txs, nil
}

// ListByWallet returns every ledger row of one wallet in insertion order.
func (r TransactionRepo) ListByWallet(ctx context.Context, q dbx.Builder, walletID string) ([]models.WalletTransaction, error) {
	txs := []models.WalletTransaction{}
	err := q.NewQuery(`SELECT id, wallet_id, user_id, wallet_type, type, amount, reference, description, created
		FROM wallet_transactions WHERE wallet_id = {:wallet_id} ORDER BY created, id`).
		Bind(dbx.Params{"wallet_id": walletID}).
		WithContext(ctx).
		All(&txs)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for wallet %s: %w", walletID, err)
	}
	return txs, nil
}
