package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"ticket-market/internal/status"
	"ticket-market/internal/store"
	"ticket-market/models"
)

// LedgerEntry describes the ledger row written alongside a balance change.
type LedgerEntry struct {
	Type        models.TransactionType
	Reference   string
	Description string
}

// Ledger mutates wallet balances. It never takes locks itself: every call
// runs on the transaction builder of a caller that already holds the wallet
// row lock.
type Ledger struct {
	wallets      store.WalletRepo
	transactions store.TransactionRepo
}

func NewLedger(db *store.DB) *Ledger {
	return &Ledger{
		wallets:      store.NewWalletRepo(db),
		transactions: store.NewTransactionRepo(db),
	}
}

// Ensure provisions a zero-balance wallet if the user has none of this type.
func (l *Ledger) Ensure(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType) error {
	return l.wallets.Ensure(ctx, q, userID, walletType)
}

func (l *Ledger) Balance(ctx context.Context, q dbx.Builder, userID string, walletType models.WalletType) (decimal.Decimal, error) {
	wallet, err := l.wallets.Get(ctx, q, userID, walletType)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, status.Newf(status.KindNotFound, "%s wallet not found", walletType)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// Debit takes amount from the locked wallet. It fails with
// InsufficientFunds before writing anything when the balance would go
// negative. wallet.Balance is updated in place on success.
func (l *Ledger) Debit(ctx context.Context, q dbx.Builder, wallet *models.Wallet, amount decimal.Decimal, entry LedgerEntry) error {
	if err := checkAmount("amount", amount); err != nil {
		return err
	}
	if wallet.Balance.LessThan(amount) {
		return status.Newf(status.KindInsufficientFunds, "insufficient %s balance", wallet.WalletType)
	}
	return l.apply(ctx, q, wallet, wallet.Balance.Sub(amount), amount, entry)
}

// Credit adds amount to the locked wallet. The resulting balance may not
// exceed MaxBalance.
func (l *Ledger) Credit(ctx context.Context, q dbx.Builder, wallet *models.Wallet, amount decimal.Decimal, entry LedgerEntry) error {
	if err := checkAmount("amount", amount); err != nil {
		return err
	}
	balance := wallet.Balance.Add(amount)
	if balance.GreaterThan(MaxBalance) {
		return status.Newf(status.KindValidation, "%s balance would exceed %s", wallet.WalletType, MaxBalance.String())
	}
	return l.apply(ctx, q, wallet, balance, amount, entry)
}

// TopUp credits the wallet from outside the marketplace. The minimum
// amount policy belongs to the caller.
func (l *Ledger) TopUp(ctx context.Context, q dbx.Builder, wallet *models.Wallet, amount decimal.Decimal) error {
	return l.Credit(ctx, q, wallet, amount, LedgerEntry{
		Type:        models.TransactionTopUp,
		Description: fmt.Sprintf("Top up %s", wallet.WalletType),
	})
}

// Reset zeroes the wallet. Nothing is written for an empty wallet.
func (l *Ledger) Reset(ctx context.Context, q dbx.Builder, wallet *models.Wallet) error {
	if wallet.Balance.IsZero() {
		return nil
	}
	return l.apply(ctx, q, wallet, decimal.Zero, wallet.Balance, LedgerEntry{
		Type:        models.TransactionReset,
		Description: "Balance reset by administrator",
	})
}

func (l *Ledger) apply(ctx context.Context, q dbx.Builder, wallet *models.Wallet, balance, amount decimal.Decimal, entry LedgerEntry) error {
	if err := l.wallets.SetBalance(ctx, q, wallet.ID, wallet.Balance, balance); err != nil {
		return err
	}

	err := l.transactions.Create(ctx, q, &models.WalletTransaction{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		WalletType:  wallet.WalletType,
		Type:        entry.Type,
		Amount:      amount,
		Reference:   entry.Reference,
		Description: entry.Description,
		Created:     types.NowDateTime(),
	})
	if err != nil {
		return err
	}

	wallet.Balance = balance
	return nil
}

// Transactions lists the user's latest ledger rows.
func (l *Ledger) Transactions(ctx context.Context, q dbx.Builder, userID string, limit int) ([]models.WalletTransaction, error) {
	return l.transactions.ListByUser(ctx, q, userID, limit)
}
