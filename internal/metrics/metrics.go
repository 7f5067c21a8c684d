package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide registry of counters and histograms. It is
// the only in-process mutable state outside the store: a handful of
// atomic counters guarded internally by the prometheus client, never a
// participant in the idempotency or outbox invariants.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrdersCreatedTotal        prometheus.Counter
	IdempotencyConflictsTotal *prometheus.CounterVec

	OutboxClaimedTotal prometheus.Counter
	OutboxSentTotal    prometheus.Counter
	OutboxFailedTotal  prometheus.Counter
}

// New registers every metric against the default prometheus registerer.
// Calling it more than once in a process will panic on duplicate
// registration, matching promauto's behavior; callers construct exactly
// one Metrics per process.
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint", "status"},
		),
		OrdersCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Total number of orders successfully created",
			},
		),
		IdempotencyConflictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_conflicts_total",
				Help: "Total number of idempotency key conflicts, by reason",
			},
			[]string{"reason"},
		),
		OutboxClaimedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outbox_claimed_total",
				Help: "Total number of outbox rows claimed by the dispatcher",
			},
		),
		OutboxSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outbox_sent_total",
				Help: "Total number of outbox rows successfully delivered",
			},
		),
		OutboxFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "outbox_failed_total",
				Help: "Total number of outbox delivery attempts that failed",
			},
		),
	}
}
