package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ticket-market/internal/store"
)

var (
	settlementOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_operations_total",
			Help: "Total settlement operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	settlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Duration of settlement units of work",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"operation"},
	)

	ticketsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_sold_total",
			Help: "Total ticket units sold",
		},
	)

	pendingFulfillment = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orders_pending_fulfillment",
			Help: "Orders paid for but not yet fulfilled",
		},
	)
)

type Monitor struct {
	db     *store.DB
	orders store.OrderRepo
}

func NewMonitor(db *store.DB) *Monitor {
	return &Monitor{db: db, orders: store.NewOrderRepo(db)}
}

// Run refreshes the polled gauges every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	count, err := m.orders.CountUnsent(ctx, m.db.Builder())
	if err != nil {
		slog.Warn("collecting pending orders", "error", err)
		return
	}
	pendingFulfillment.Set(float64(count))
}

// Track settlement operations
func (m *Monitor) TrackSettlement(operation, outcome string, duration time.Duration) {
	settlementOperations.WithLabelValues(operation, outcome).Inc()
	settlementDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Monitor) TrackTicketsSold(quantity int) {
	ticketsSold.Add(float64(quantity))
}
