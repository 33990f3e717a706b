package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grb_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grb_holds_created_total",
			Help: "Total holds created",
		},
	)

	HoldConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grb_hold_conflicts_total",
			Help: "Total hold attempts rejected with a slot conflict",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grb_holds_expired_total",
			Help: "Total holds released by the expiry path",
		},
	)

	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grb_reconciliations_total",
			Help: "Reconciliation outcomes by resulting status",
		},
		[]string{"result"},
	)

	GatewayRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grb_gateway_request_seconds",
			Help:    "Duration of payment gateway order-status calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grb_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	GroundResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grb_ground_resolutions_total",
			Help: "Ground reference resolutions by answering tier",
		},
		[]string{"tier"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
