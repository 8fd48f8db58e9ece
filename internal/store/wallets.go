package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"ticket-market/models"
)

const walletColumns = "id, user_id, wallet_type, balance, created, updated"

type WalletRepo struct {
	db *DB
}

func NewWalletRepo(db *DB) WalletRepo {
	return WalletRepo{db: db}
}

// Ensure inserts a zero-balance wallet unless one already exists for the
// (user, type) pair. Concurrent callers converge on the same row through the
// unique index.
func (r WalletRepo) Ensure(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType) error {
	now := types.NowDateTime()
	_, err := q.NewQuery(`INSERT INTO wallets (id, user_id, wallet_type, balance, created, updated)
		VALUES ({:id}, {:user_id}, {:wallet_type}, {:balance}, {:created}, {:updated})
		ON CONFLICT (user_id, wallet_type) DO NOTHING`).
		Bind(dbx.Params{
			"id":          uuid.NewString(),
			"user_id":     userID,
			"wallet_type": string(walletType),
			"balance":     decimal.Zero,
			"created":     now,
			"updated":     now,
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("ensuring %s wallet for %s: %w", walletType, userID, err)
	}
	return nil
}

func (r WalletRepo) Get(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType) (*models.Wallet, error) {
	return r.get(ctx, q, userID, walletType, "")
}

// Lock reads the wallet row and holds its lock until the transaction ends.
func (r WalletRepo) Lock(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType) (*models.Wallet, error) {
	return r.get(ctx, q, userID, walletType, r.db.forUpdate())
}

func (r WalletRepo) get(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType, lock string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := q.NewQuery("SELECT " + walletColumns + " FROM wallets WHERE user_id = {:user_id} AND wallet_type = {:wallet_type}" + lock).
		Bind(dbx.Params{"user_id": userID, "wallet_type": string(walletType)}).
		WithContext(ctx).
		One(&wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting %s wallet for %s: %w", walletType, userID, err)
	}
	return &wallet, nil
}

// List returns the user's wallets ordered by type, which is also the lock order.
func (r WalletRepo) List(ctx context.Context, q dbx.Builder, userID string) ([]models.Wallet, error) {
	return r.list(ctx, q, userID, "")
}

func (r WalletRepo) LockAll(ctx context.Context, q dbx.Builder, userID string) ([]models.Wallet, error) {
	return r.list(ctx, q, userID, r.db.forUpdate())
}

func (r WalletRepo) list(ctx context.Context, q dbx.Builder, userID string, lock string) ([]models.Wallet, error) {
	wallets := []models.Wallet{}
	err := q.NewQuery("SELECT " + walletColumns + " FROM wallets WHERE user_id = {:user_id} ORDER BY wallet_type" + lock).
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		All(&wallets)
	if err != nil {
		return nil, fmt.Errorf("listing wallets for %s: %w", userID, err)
	}
	return wallets, nil
}

// SetBalance writes an absolute balance computed by the caller under the
// wallet lock. guard is the balance the caller read; the update affects no
// rows if the stored balance moved in the meantime.
func (r WalletRepo) SetBalance(ctx context.Context, q dbx.Builder, walletID string, guard, balance decimal.Decimal) error {
	res, err := q.NewQuery(`UPDATE wallets SET balance = {:balance}, updated = {:updated}
		WHERE id = {:id} AND balance = {:guard}`).
		Bind(dbx.Params{
			"id":      walletID,
			"balance": balance,
			"guard":   guard,
			"updated": types.NowDateTime(),
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("updating wallet %s balance: %w", walletID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating wallet %s balance: %w", walletID, err)
	}
	if n != 1 {
		return ErrStale
	}
	return nil
}
