package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-market/internal/store"
	"ticket-market/models"
)

func TestMonitor_TrackSettlement(t *testing.T) {
	m := &Monitor{}
	before := testutil.ToFloat64(settlementOperations.WithLabelValues("purchase", "success"))

	m.TrackSettlement("purchase", "success", 20*time.Millisecond)
	m.TrackSettlement("purchase", "success", 30*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(settlementOperations.WithLabelValues("purchase", "success")))
}

func TestMonitor_TrackTicketsSold(t *testing.T) {
	m := &Monitor{}
	before := testutil.ToFloat64(ticketsSold)

	m.TrackTicketsSold(3)

	assert.Equal(t, before+3, testutil.ToFloat64(ticketsSold))
}

func TestMonitor_CollectPending(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open("sqlite", ":memory:", 0)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.CreateSchema(ctx, db.Builder(), db.Dialect()))

	now := types.NowDateTime()
	ticket := &models.Ticket{
		ID: uuid.NewString(), SellerID: "seller-1", Title: "Gig", EventDate: now,
		Price: decimal.NewFromInt(1000), Quantity: 2, RemainingQuantity: 2,
		Created: now, Updated: now,
	}
	require.NoError(t, store.NewTicketRepo(db).Create(ctx, db.Builder(), ticket))

	orders := store.NewOrderRepo(db)
	for i := 0; i < 2; i++ {
		require.NoError(t, orders.Create(ctx, db.Builder(), &models.Order{
			ID: uuid.NewString(), BuyerID: "buyer-1", TicketID: ticket.ID, Quantity: 1,
			TotalPrice: decimal.NewFromInt(1000), WalletType: models.WalletDindaPay,
			Status: models.OrderStatusCompleted, Created: now, Updated: now,
		}))
	}

	m := NewMonitor(db)
	m.collect(ctx)
	assert.Equal(t, float64(2), testutil.ToFloat64(pendingFulfillment))
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:", 0)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.CreateSchema(context.Background(), db.Builder(), db.Dialect()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewMonitor(db).Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestServer_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		srv := NewServer(map[string]Pinger{
			"database": PingerFunc(func(context.Context) error { return nil }),
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Healthy bool              `json:"healthy"`
			Checks  map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Healthy)
		assert.Equal(t, "ok", body.Checks["database"])
	})

	t.Run("Unhealthy", func(t *testing.T) {
		srv := NewServer(map[string]Pinger{
			"database": PingerFunc(func(context.Context) error { return nil }),
			"redis":    PingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestServer_Metrics(t *testing.T) {
	(&Monitor{}).TrackTicketsSold(1)

	rec := httptest.NewRecorder()
	NewServer(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tickets_sold_total")
}
