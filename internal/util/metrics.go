package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_created_total",
		Help: "Total number of reservation batches successfully held",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed reservation batches",
	}, []string{"reason"})

	ReservationsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_committed_total",
		Help: "Total number of reservations committed to orders",
	})

	ReservationsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_released_total",
		Help: "Total number of reservations released",
	}, []string{"trigger"})

	ConditionalWriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conditional_write_conflicts_total",
		Help: "Conditional stock updates whose predicate failed at write time",
	})

	CompensatingReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_compensating_releases_total",
		Help: "Releases issued to undo partially reserved batches",
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_sweep_runs_total",
		Help: "Total number of expiration sweep runs",
	})

	SweepReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_sweep_released_total",
		Help: "Total number of expired reservations released by sweeps",
	})

	InvariantViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_invariant_violations_total",
		Help: "Detected violations of 0 <= reserved <= quantity",
	})

	ReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of reservation batch operations",
		Buckets: prometheus.DefBuckets,
	})

	LedgerMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_ledger_moves_total",
		Help: "Total number of inventory moves appended to the ledger",
	}, []string{"move_type"})

	ExternalStockObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_external_observations_total",
		Help: "Externally observed stock change notifications (monitor only)",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
