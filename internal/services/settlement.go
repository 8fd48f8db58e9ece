package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ticket-market/internal/status"
	"ticket-market/internal/store"
	"ticket-market/models"
)

const (
	OpPurchase     = "purchase"
	OpFulfill      = "fulfill"
	OpTopUp        = "topup"
	OpWallets      = "wallets"
	OpOrders       = "orders"
	OpTransactions = "transactions"
	OpResetWallets = "reset_wallets"

	maxIdempotencyKeyLength = 255
	defaultTransactionLimit = 100
)

// Recorder receives settlement outcomes. monitoring.Monitor implements it.
type Recorder interface {
	TrackSettlement(operation, outcome string, duration time.Duration)
	TrackTicketsSold(quantity int)
}

type nopRecorder struct{}

func (nopRecorder) TrackSettlement(string, string, time.Duration) {}
func (nopRecorder) TrackTicketsSold(int)                          {}

type SettlementConfig struct {
	// TxTimeout bounds every unit of work. Zero means no bound.
	TxTimeout time.Duration
	// MinTopUp is the smallest accepted top-up amount.
	MinTopUp decimal.Decimal
}

type PurchaseRequest struct {
	BuyerID        string
	TicketID       string
	Quantity       int
	WalletType     models.WalletType
	IdempotencyKey string
}

func (r PurchaseRequest) Validate() error {
	switch {
	case r.BuyerID == "":
		return status.New(status.KindValidation, "buyer is required")
	case r.TicketID == "":
		return status.New(status.KindValidation, "ticket is required")
	case r.Quantity < 1:
		return status.New(status.KindValidation, "quantity must be at least 1")
	case !r.WalletType.Valid():
		return status.Newf(status.KindValidation, "unknown wallet type %q", r.WalletType)
	case len(r.IdempotencyKey) > maxIdempotencyKeyLength:
		return status.New(status.KindValidation, "idempotency key is too long")
	}
	return nil
}

type PurchaseResult struct {
	Order *models.Order
	// Replayed is set when the idempotency key matched an earlier order and
	// nothing was charged.
	Replayed bool
}

type FulfillResult struct {
	OrderID     string
	TicketCodes []string
}

// Settlement is the only place that moves money and stock. Each operation is
// one unit of work: ticket row first, then the buyer wallet, then the seller
// wallet.
type Settlement struct {
	db        *store.DB
	cfg       SettlementConfig
	ledger    *Ledger
	inventory *Inventory
	codes     *CodeIssuer
	notifier  *Notifier
	realtime  *Realtime
	metrics   Recorder

	wallets     store.WalletRepo
	tickets     store.TicketRepo
	orders      store.OrderRepo
	ticketCodes store.TicketCodeRepo

	// testHookStep runs after each write step of a unit of work. A non-nil
	// error aborts the unit.
	testHookStep func(step string) error
}

func NewSettlement(db *store.DB, cfg SettlementConfig, realtime *Realtime, metrics Recorder) *Settlement {
	if realtime == nil {
		realtime = NewRealtime(nil)
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Settlement{
		db:          db,
		cfg:         cfg,
		ledger:      NewLedger(db),
		inventory:   NewInventory(db),
		codes:       NewCodeIssuer(),
		notifier:    NewNotifier(db),
		realtime:    realtime,
		metrics:     metrics,
		wallets:     store.NewWalletRepo(db),
		tickets:     store.NewTicketRepo(db),
		orders:      store.NewOrderRepo(db),
		ticketCodes: store.NewTicketCodeRepo(db),
	}
}

func (s *Settlement) Inventory() *Inventory {
	return s.inventory
}

func (s *Settlement) Notifier() *Notifier {
	return s.notifier
}

// Purchase debits the buyer, credits the seller, takes the stock and records
// the order, all or nothing.
func (s *Settlement) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		result PurchaseResult
		pushes []*models.Notification
	)
	err := s.run(ctx, OpPurchase, func(ctx context.Context, q dbx.Builder) error {
		ticket, err := s.tickets.Lock(ctx, q, req.TicketID)
		if errors.Is(err, store.ErrNotFound) {
			return status.New(status.KindNotFound, "ticket not found")
		}
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			existing, err := s.orders.FindByIdempotencyKey(ctx, q, req.BuyerID, req.IdempotencyKey)
			switch {
			case err == nil:
				if existing.TicketID != req.TicketID || existing.Quantity != req.Quantity || existing.WalletType != req.WalletType {
					return status.New(status.KindConflict, "idempotency key was used for a different purchase")
				}
				result = PurchaseResult{Order: existing, Replayed: true}
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		buyer, err := s.wallets.Lock(ctx, q, req.BuyerID, req.WalletType)
		if errors.Is(err, store.ErrNotFound) {
			return status.Newf(status.KindNotFound, "%s wallet not found", req.WalletType)
		}
		if err != nil {
			return err
		}

		total := ticket.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if ticket.RemainingQuantity < req.Quantity {
			return status.Newf(status.KindInsufficientStock, "only %d tickets remaining", ticket.RemainingQuantity)
		}
		if buyer.Balance.LessThan(total) {
			return status.Newf(status.KindInsufficientFunds, "insufficient %s balance", req.WalletType)
		}

		orderID := uuid.NewString()
		err = s.ledger.Debit(ctx, q, buyer, total, LedgerEntry{
			Type:        models.TransactionPayment,
			Reference:   orderID,
			Description: fmt.Sprintf("Payment for %d x %s", req.Quantity, ticket.Title),
		})
		if err != nil {
			return err
		}
		if err := s.step("debit"); err != nil {
			return err
		}

		if err := s.inventory.Reserve(ctx, q, ticket, req.Quantity); err != nil {
			return err
		}
		if err := s.step("reserve"); err != nil {
			return err
		}

		seller := buyer
		if ticket.SellerID != req.BuyerID {
			if err := s.ledger.Ensure(ctx, q, ticket.SellerID, req.WalletType); err != nil {
				return err
			}
			if seller, err = s.wallets.Lock(ctx, q, ticket.SellerID, req.WalletType); err != nil {
				return err
			}
		}
		err = s.ledger.Credit(ctx, q, seller, total, LedgerEntry{
			Type:        models.TransactionSale,
			Reference:   orderID,
			Description: fmt.Sprintf("Sale of %d x %s", req.Quantity, ticket.Title),
		})
		if err != nil {
			return err
		}

		now := types.NowDateTime()
		order := &models.Order{
			ID:             orderID,
			BuyerID:        req.BuyerID,
			TicketID:       ticket.ID,
			Quantity:       req.Quantity,
			TotalPrice:     total,
			WalletType:     req.WalletType,
			Status:         models.OrderStatusCompleted,
			IsSent:         false,
			IdempotencyKey: req.IdempotencyKey,
			Created:        now,
			Updated:        now,
		}
		if err := s.orders.Create(ctx, q, order); err != nil {
			return err
		}
		if err := s.step("order"); err != nil {
			return err
		}

		pushes, err = s.notifyAll(ctx, q,
			NotifyParams{
				UserID:  req.BuyerID,
				Type:    models.NotificationPurchase,
				Title:   "Purchase successful",
				Message: fmt.Sprintf("You bought %d ticket(s) for %s. Total %s via %s.", req.Quantity, ticket.Title, total.StringFixed(2), req.WalletType),
				OrderID: orderID,
			},
			NotifyParams{
				UserID:  ticket.SellerID,
				Type:    models.NotificationSale,
				Title:   "New order",
				Message: fmt.Sprintf("%d ticket(s) for %s were sold. Send the ticket codes to fulfill the order.", req.Quantity, ticket.Title),
				OrderID: orderID,
			},
		)
		if err != nil {
			return err
		}

		result = PurchaseResult{Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		slog.Info("purchase replayed", "order", result.Order.ID, "buyer", req.BuyerID)
		return &result, nil
	}

	s.metrics.TrackTicketsSold(req.Quantity)
	slog.Info("purchase settled",
		"order", result.Order.ID,
		"buyer", req.BuyerID,
		"ticket", req.TicketID,
		"quantity", req.Quantity,
		"total", result.Order.TotalPrice.String(),
		"wallet", req.WalletType,
	)
	s.push(ctx, pushes)
	return &result, nil
}

// Fulfill issues one code per purchased unit and marks the order sent. It
// succeeds at most once per order.
func (s *Settlement) Fulfill(ctx context.Context, orderID, sellerID string) (*FulfillResult, error) {
	if orderID == "" {
		return nil, status.New(status.KindValidation, "order is required")
	}
	if sellerID == "" {
		return nil, status.New(status.KindValidation, "seller is required")
	}

	var (
		result FulfillResult
		pushes []*models.Notification
	)
	err := s.run(ctx, OpFulfill, func(ctx context.Context, q dbx.Builder) error {
		order, err := s.orders.Lock(ctx, q, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return status.New(status.KindNotFound, "order not found")
		}
		if err != nil {
			return err
		}

		ticket, err := s.tickets.Get(ctx, q, order.TicketID)
		if errors.Is(err, store.ErrNotFound) {
			return status.New(status.KindNotFound, "ticket not found")
		}
		if err != nil {
			return err
		}

		if ticket.SellerID != sellerID {
			return status.New(status.KindUnauthorized, "only the seller can fulfill this order")
		}
		if order.IsSent {
			return status.New(status.KindConflict, "order already fulfilled")
		}

		codes, err := s.codes.Issue(order.Quantity)
		if err != nil {
			return err
		}
		if _, err := s.ticketCodes.CreateAll(ctx, q, order.ID, codes); err != nil {
			return err
		}
		if err := s.step("codes"); err != nil {
			return err
		}

		if err := s.orders.MarkSent(ctx, q, order.ID); err != nil {
			if errors.Is(err, store.ErrStale) {
				return status.New(status.KindConflict, "order already fulfilled")
			}
			return err
		}

		params := make([]NotifyParams, 0, len(codes)+1)
		for i, code := range codes {
			params = append(params, NotifyParams{
				UserID:      order.BuyerID,
				Type:        models.NotificationTicketReceived,
				Title:       "Your ticket has arrived",
				Message:     fmt.Sprintf("Ticket %d of %d for %s. Code: %s", i+1, len(codes), ticket.Title, code),
				OrderID:     order.ID,
				TicketCodes: []string{code},
			})
		}
		params = append(params, NotifyParams{
			UserID:      sellerID,
			Type:        models.NotificationTicketSent,
			Title:       "Tickets sent",
			Message:     fmt.Sprintf("%d code(s) for %s were sent to the buyer: %s", len(codes), ticket.Title, strings.Join(codes, ", ")),
			OrderID:     order.ID,
			TicketCodes: codes,
		})

		if pushes, err = s.notifyAll(ctx, q, params...); err != nil {
			return err
		}

		result = FulfillResult{OrderID: order.ID, TicketCodes: codes}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order fulfilled", "order", orderID, "seller", sellerID, "codes", len(result.TicketCodes))
	s.push(ctx, pushes)
	return &result, nil
}

// TopUp credits a wallet from outside the marketplace, provisioning the
// wallet if needed.
func (s *Settlement) TopUp(ctx context.Context, userID string, walletType models.WalletType, amount decimal.Decimal) (*models.Wallet, error) {
	switch {
	case userID == "":
		return nil, status.New(status.KindValidation, "user is required")
	case !walletType.Valid():
		return nil, status.Newf(status.KindValidation, "unknown wallet type %q", walletType)
	case amount.LessThan(s.cfg.MinTopUp):
		return nil, status.Newf(status.KindValidation, "minimum top up is %s", s.cfg.MinTopUp.String())
	case amount.GreaterThan(MaxBalance):
		return nil, status.Newf(status.KindValidation, "maximum top up is %s", MaxBalance.String())
	}
	if err := checkAmount("amount", amount); err != nil {
		return nil, err
	}

	var (
		wallet *models.Wallet
		pushes []*models.Notification
	)
	err := s.run(ctx, OpTopUp, func(ctx context.Context, q dbx.Builder) error {
		if err := s.ledger.Ensure(ctx, q, userID, walletType); err != nil {
			return err
		}
		locked, err := s.wallets.Lock(ctx, q, userID, walletType)
		if err != nil {
			return err
		}
		if err := s.ledger.TopUp(ctx, q, locked, amount); err != nil {
			return err
		}

		pushes, err = s.notifyAll(ctx, q, NotifyParams{
			UserID:  userID,
			Type:    models.NotificationTopUp,
			Title:   "Top up successful",
			Message: fmt.Sprintf("%s was added to your %s wallet. New balance %s.", amount.StringFixed(2), walletType, locked.Balance.StringFixed(2)),
		})
		if err != nil {
			return err
		}

		wallet = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("wallet topped up", "user", userID, "wallet", walletType, "amount", amount.String())
	s.push(ctx, pushes)
	return wallet, nil
}

// Wallets returns every recognized wallet of the user, provisioning missing
// ones with a zero balance.
func (s *Settlement) Wallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	if userID == "" {
		return nil, status.New(status.KindValidation, "user is required")
	}

	var wallets []models.Wallet
	err := s.run(ctx, OpWallets, func(ctx context.Context, q dbx.Builder) error {
		for _, walletType := range models.WalletTypes {
			if err := s.ledger.Ensure(ctx, q, userID, walletType); err != nil {
				return err
			}
		}
		var err error
		wallets, err = s.wallets.List(ctx, q, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// Orders returns the user's purchase history, or the orders placed against
// the user's listings when asSeller is set. Newest first.
func (s *Settlement) Orders(ctx context.Context, userID string, asSeller bool) ([]models.OrderView, error) {
	if userID == "" {
		return nil, status.New(status.KindValidation, "user is required")
	}

	var orders []models.OrderView
	err := s.run(ctx, OpOrders, func(ctx context.Context, q dbx.Builder) error {
		var err error
		if asSeller {
			orders, err = s.orders.ListBySeller(ctx, q, userID)
		} else {
			orders, err = s.orders.ListByBuyer(ctx, q, userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Settlement) Transactions(ctx context.Context, userID string, limit int) ([]models.WalletTransaction, error) {
	if userID == "" {
		return nil, status.New(status.KindValidation, "user is required")
	}
	if limit <= 0 || limit > defaultTransactionLimit {
		limit = defaultTransactionLimit
	}

	var txs []models.WalletTransaction
	err := s.run(ctx, OpTransactions, func(ctx context.Context, q dbx.Builder) error {
		var err error
		txs, err = s.ledger.Transactions(ctx, q, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ResetWallets zeroes every wallet of the user. Administrative use only.
func (s *Settlement) ResetWallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	if userID == "" {
		return nil, status.New(status.KindValidation, "user is required")
	}

	var wallets []models.Wallet
	err := s.run(ctx, OpResetWallets, func(ctx context.Context, q dbx.Builder) error {
		locked, err := s.wallets.LockAll(ctx, q, userID)
		if err != nil {
			return err
		}
		for i := range locked {
			if err := s.ledger.Reset(ctx, q, &locked[i]); err != nil {
				return err
			}
		}
		for _, walletType := range models.WalletTypes {
			if err := s.ledger.Ensure(ctx, q, userID, walletType); err != nil {
				return err
			}
		}
		wallets, err = s.wallets.List(ctx, q, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Warn("wallets reset", "user", userID)
	return wallets, nil
}

// run executes fn as one unit of work bounded by the configured timeout and
// turns whatever it returns into a status error.
func (s *Settlement) run(ctx context.Context, op string, fn func(ctx context.Context, q dbx.Builder) error) error {
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.db.RunInTx(ctx, func(q dbx.Builder) error {
		return fn(ctx, q)
	})
	err = classify(ctx, err)

	outcome := "success"
	if err != nil {
		outcome = status.KindOf(err).String()
	}
	s.metrics.TrackSettlement(op, outcome, time.Since(start))

	if err != nil && status.KindOf(err) == status.KindInternal {
		slog.Error("settlement failed", "operation", op, "error", err)
	}
	return err
}

func (s *Settlement) notifyAll(ctx context.Context, q dbx.Builder, params ...NotifyParams) ([]*models.Notification, error) {
	notifications := make([]*models.Notification, 0, len(params))
	for _, p := range params {
		n, err := s.notifier.Notify(ctx, q, p)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// push hands committed notifications to the realtime channel. It must only be
// called after the unit of work committed.
func (s *Settlement) push(ctx context.Context, notifications []*models.Notification) {
	if len(notifications) == 0 {
		return
	}
	go s.realtime.Push(context.WithoutCancel(ctx), notifications)
}

func (s *Settlement) step(name string) error {
	if s.testHookStep == nil {
		return nil
	}
	return s.testHookStep(name)
}

var retryablePostgresCodes = map[string]struct{}{
	"lock_not_available":    {},
	"serialization_failure": {},
	"deadlock_detected":     {},
	"query_canceled":        {},
	"unique_violation":      {},
}

// classify maps anything a unit of work returned onto the status taxonomy.
// Errors that already carry a kind pass through unchanged.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var se *status.Error
	if errors.As(err, &se) {
		return err
	}

	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return status.Wrap(status.KindConflict, "request timed out, please retry", err)
	case errors.Is(err, store.ErrStale):
		return status.Wrap(status.KindConflict, "concurrent update, please retry", err)
	case errors.Is(err, store.ErrNotFound):
		return status.Wrap(status.KindNotFound, "not found", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := retryablePostgresCodes[pqErr.Code.Name()]; ok {
			return status.Wrap(status.KindConflict, "resource busy, please retry", err)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_INTERRUPT:
			return status.Wrap(status.KindConflict, "resource busy, please retry", err)
		}
	}

	return status.Wrap(status.KindInternal, "", err)
}
