package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/status"
	"ticket-market/internal/store"
	"ticket-market/models"
	"ticket-market/utils"
)

func TestCodeIssuer_Issue(t *testing.T) {
	codes, err := NewCodeIssuer().Issue(5)
	require.NoError(t, err)
	require.Len(t, codes, 5)
	for _, code := range codes {
		assert.Regexp(t, codePattern, code)
	}
}

func TestCodeIssuer_RedrawsDuplicates(t *testing.T) {
	draws := []string{"AAAA", "AAAA", "BBBB", "AAAA", "CCCC"}
	issuer := &CodeIssuer{generate: func() (string, error) {
		code := draws[0]
		draws = draws[1:]
		return code, nil
	}}

	codes, err := issuer.Issue(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA", "BBBB", "CCCC"}, codes)
}

func TestCodeIssuer_Errors(t *testing.T) {
	_, err := NewCodeIssuer().Issue(0)
	assert.Error(t, err)

	constant := &CodeIssuer{generate: func() (string, error) { return "SAME", nil }}
	_, err = constant.Issue(2)
	assert.Error(t, err)

	broken := &CodeIssuer{generate: func() (string, error) { return "", errors.New("no entropy") }}
	_, err = broken.Issue(1)
	assert.ErrorContains(t, err, "no entropy")
}

func newLedgerFixture(t *testing.T) (*store.DB, *Ledger, *models.Wallet) {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := env.settlement.ledger

	require.NoError(t, ledger.Ensure(ctx, env.db.Builder(), "user-1", models.WalletDindaPay))
	wallet, err := store.NewWalletRepo(env.db).Lock(ctx, env.db.Builder(), "user-1", models.WalletDindaPay)
	require.NoError(t, err)
	return env.db, ledger, wallet
}

func TestLedger_DebitNeverGoesNegative(t *testing.T) {
	db, ledger, wallet := newLedgerFixture(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(q dbx.Builder) error {
		require.NoError(t, ledger.TopUp(ctx, q, wallet, decimal.NewFromInt(5000)))
		return ledger.Debit(ctx, q, wallet, decimal.NewFromInt(5001), LedgerEntry{Type: models.TransactionPayment})
	})
	assert.ErrorIs(t, err, status.ErrInsufficientFunds)

	balance, err := ledger.Balance(ctx, db.Builder(), "user-1", models.WalletDindaPay)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestLedger_DebitCreditAndReset(t *testing.T) {
	db, ledger, wallet := newLedgerFixture(t)
	ctx := context.Background()
	q := db.Builder()

	require.NoError(t, ledger.TopUp(ctx, q, wallet, decimal.NewFromInt(10000)))
	require.NoError(t, ledger.Debit(ctx, q, wallet, decimal.NewFromInt(10000), LedgerEntry{Type: models.TransactionPayment}))
	assert.True(t, wallet.Balance.IsZero())

	require.NoError(t, ledger.Credit(ctx, q, wallet, decimal.NewFromInt(700), LedgerEntry{Type: models.TransactionSale}))
	require.NoError(t, ledger.Reset(ctx, q, wallet))
	require.NoError(t, ledger.Reset(ctx, q, wallet))

	txs, err := ledger.Transactions(ctx, q, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 4)

	for _, amount := range []int64{0, -1} {
		assert.ErrorIs(t, ledger.Credit(ctx, q, wallet, decimal.NewFromInt(amount), LedgerEntry{}), status.ErrValidation)
		assert.ErrorIs(t, ledger.Debit(ctx, q, wallet, decimal.NewFromInt(amount), LedgerEntry{}), status.ErrValidation)
	}
}

func TestLedger_BalanceMissingWallet(t *testing.T) {
	db, ledger, _ := newLedgerFixture(t)

	_, err := ledger.Balance(context.Background(), db.Builder(), "user-2", models.WalletDindaPay)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestInventory_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	valid := CreateTicketParams{
		SellerID:  "seller-1",
		Title:     "Opera",
		EventDate: time.Now().Add(time.Hour),
		Price:     decimal.NewFromInt(1000),
		Quantity:  1,
	}

	tests := []struct {
		name   string
		modify func(p *CreateTicketParams)
	}{
		{"MissingSeller", func(p *CreateTicketParams) { p.SellerID = "" }},
		{"BlankTitle", func(p *CreateTicketParams) { p.Title = "  " }},
		{"MissingDate", func(p *CreateTicketParams) { p.EventDate = time.Time{} }},
		{"FreeTicket", func(p *CreateTicketParams) { p.Price = decimal.Zero }},
		{"SubCentPrice", func(p *CreateTicketParams) { p.Price = decimal.RequireFromString("0.333") }},
		{"PriceAtCap", func(p *CreateTicketParams) { p.Price = decimal.NewFromInt(1_000_000_000) }},
		{"HugePrice", func(p *CreateTicketParams) { p.Price = decimal.RequireFromString("1e20") }},
		{"NoStock", func(p *CreateTicketParams) { p.Quantity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.modify(&p)
			_, err := env.settlement.Inventory().Create(context.Background(), p)
			assert.ErrorIs(t, err, status.ErrValidation)
		})
	}

	ticket, err := env.settlement.Inventory().Create(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.RemainingQuantity)

	listed, err := env.settlement.Inventory().List(context.Background(), store.TicketFilter{Search: "oper"})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = env.settlement.Inventory().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestInventory_CreateAcceptsCentPrecision(t *testing.T) {
	env := newTestEnv(t)

	ticket, err := env.settlement.Inventory().Create(context.Background(), CreateTicketParams{
		SellerID:  "seller-1",
		Title:     "Opera",
		EventDate: time.Now().Add(time.Hour),
		Price:     decimal.RequireFromString("999999999.99"),
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("999999999.99").Equal(ticket.Price))
}

func TestLedger_RejectsMalformedAmounts(t *testing.T) {
	db, ledger, wallet := newLedgerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"Zero", decimal.Zero},
		{"SubCent", decimal.RequireFromString("0.001")},
		{"PastBalanceCap", MaxBalance.Add(decimal.NewFromInt(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.RunInTx(ctx, func(q dbx.Builder) error {
				return ledger.Credit(ctx, q, wallet, tt.amount, LedgerEntry{Type: models.TransactionSale})
			})
			assert.ErrorIs(t, err, status.ErrValidation)
		})
	}

	err := db.RunInTx(ctx, func(q dbx.Builder) error {
		return ledger.Debit(ctx, q, wallet, decimal.RequireFromString("0.005"), LedgerEntry{Type: models.TransactionPayment})
	})
	assert.ErrorIs(t, err, status.ErrValidation)

	balance, err := ledger.Balance(ctx, db.Builder(), "user-1", models.WalletDindaPay)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestInventory_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.listTicket(t, "seller-1", 1000, 5)
	env.fund(t, "buyer-1", models.WalletDindaPay, 10000)
	_, err := env.settlement.Purchase(ctx, PurchaseRequest{
		BuyerID: "buyer-1", TicketID: ticket.ID, Quantity: 3, WalletType: models.WalletDindaPay,
	})
	require.NoError(t, err)

	params := UpdateTicketParams{
		TicketID:  ticket.ID,
		SellerID:  "seller-1",
		Title:     "Jazz Night (late show)",
		Venue:     "Green Room",
		EventDate: time.Now().Add(96 * time.Hour),
	}

	t.Run("OnlySeller", func(t *testing.T) {
		p := params
		p.SellerID = "buyer-1"
		_, err := env.settlement.Inventory().Update(ctx, p)
		assert.ErrorIs(t, err, status.ErrUnauthorized)
	})

	t.Run("Missing", func(t *testing.T) {
		p := params
		p.TicketID = "missing"
		_, err := env.settlement.Inventory().Update(ctx, p)
		assert.ErrorIs(t, err, status.ErrNotFound)
	})

	t.Run("BelowSold", func(t *testing.T) {
		p := params
		p.Quantity = 2
		_, err := env.settlement.Inventory().Update(ctx, p)
		assert.ErrorIs(t, err, status.ErrValidation)
		assert.Equal(t, 2, env.remaining(t, ticket.ID))
	})

	t.Run("PriceFrozen", func(t *testing.T) {
		p := params
		price := decimal.NewFromInt(1)
		p.Price = &price
		_, err := env.settlement.Inventory().Update(ctx, p)
		assert.ErrorIs(t, err, status.ErrValidation)
	})

	t.Run("KeepsSoldUnits", func(t *testing.T) {
		p := params
		p.Quantity = 4
		same := decimal.NewFromInt(1000)
		p.Price = &same
		updated, err := env.settlement.Inventory().Update(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "Jazz Night (late show)", updated.Title)
		assert.Equal(t, 4, updated.Quantity)
		assert.Equal(t, 1, updated.RemainingQuantity)
		assert.Equal(t, 1, env.remaining(t, ticket.ID))
	})
}

func TestInventory_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inventory := env.settlement.Inventory()

	sold := env.listTicket(t, "seller-1", 1000, 5)
	env.fund(t, "buyer-1", models.WalletDindaPay, 10000)
	_, err := env.settlement.Purchase(ctx, PurchaseRequest{
		BuyerID: "buyer-1", TicketID: sold.ID, Quantity: 1, WalletType: models.WalletDindaPay,
	})
	require.NoError(t, err)

	unsold := env.listTicket(t, "seller-1", 1000, 5)

	assert.ErrorIs(t, inventory.Delete(ctx, sold.ID, "seller-1"), status.ErrConflict)
	assert.ErrorIs(t, inventory.Delete(ctx, unsold.ID, "buyer-1"), status.ErrUnauthorized)
	assert.ErrorIs(t, inventory.Delete(ctx, "missing", "seller-1"), status.ErrNotFound)
	assert.ErrorIs(t, inventory.Delete(ctx, "", "seller-1"), status.ErrValidation)

	require.NoError(t, inventory.Delete(ctx, unsold.ID, "seller-1"))
	_, err = inventory.Get(ctx, unsold.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = inventory.Get(ctx, sold.ID)
	assert.NoError(t, err)
}

func TestInventory_ReserveLeavesRowOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.listTicket(t, "seller-1", 1000, 2)

	err := env.settlement.Inventory().Reserve(ctx, env.db.Builder(), ticket, 3)
	assert.ErrorIs(t, err, status.ErrInsufficientStock)
	assert.Equal(t, 2, env.remaining(t, ticket.ID))

	stale := *ticket
	require.NoError(t, env.settlement.Inventory().Reserve(ctx, env.db.Builder(), ticket, 2))
	assert.Equal(t, 0, ticket.RemainingQuantity)

	err = env.settlement.Inventory().Reserve(ctx, env.db.Builder(), &stale, 1)
	assert.ErrorIs(t, err, status.ErrInsufficientStock)
	assert.Equal(t, 0, env.remaining(t, ticket.ID))
}

func TestNotifier_ReadSide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	notifier := env.settlement.Notifier()

	n, err := notifier.Notify(ctx, env.db.Builder(), NotifyParams{
		UserID: "user-1", Type: models.NotificationSale, Title: "Sold", Message: "one sold",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.NotNil(t, n.TicketCodes)

	count, err := notifier.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, notifier.MarkRead(ctx, "user-2", n.ID), status.ErrNotFound)
	require.NoError(t, notifier.MarkRead(ctx, "user-1", n.ID))

	count, err = notifier.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, notifier.Delete(ctx, "user-1", "missing"), status.ErrNotFound)
	deleted, err := notifier.DeleteAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRealtime_BreakerStopsHammeringPublisher(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("pubnub down")}
	rt := NewRealtime(publisher, utils.WithTripThreshold(2, 0.5), utils.WithOpenTimeout(time.Minute))

	batch := []*models.Notification{{ID: "n-1", UserID: "u-1"}, {ID: "n-2", UserID: "u-2"}, {ID: "n-3", UserID: "u-3"}}
	rt.Push(context.Background(), batch)
	rt.Push(context.Background(), batch)

	assert.Equal(t, []string{"user-u-1", "user-u-2"}, publisher.Channels())
}

func TestNewPublisher_WithoutKeysIsNop(t *testing.T) {
	publisher := NewPublisher(PubNubConfig{})
	assert.IsType(t, nopPublisher{}, publisher)
	assert.NoError(t, publisher.Publish(context.Background(), "user-1", "hello"))
}
