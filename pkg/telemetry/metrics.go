package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine metrics. Registered on the default registry so both binaries
// can expose them through promhttp without extra wiring.
var (
	PollTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_poll_ticks_total",
		Help: "Poll loop iterations that issued a fetch.",
	})
	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_poll_failures_total",
		Help: "Fetches that failed and were retried on the next tick.",
	})
	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_reconcile_runs_total",
		Help: "Reconciliations applied to the message store.",
	})
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskchat_reconcile_duration_seconds",
		Help:    "Time spent merging a fetched page into the store.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
	InferredTombstones = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_inferred_tombstones_total",
		Help: "Messages tombstoned because they vanished from a fetch.",
	})
	StaleDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_stale_drops_total",
		Help: "Fetch results discarded because the project changed mid-flight.",
	})
	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskchat_sends_total",
		Help: "User-initiated sends by outcome.",
	}, []string{"outcome"})
	DeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskchat_deletes_total",
		Help: "User-initiated deletes by outcome.",
	}, []string{"outcome"})
)

// Dev server metrics.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskchat_dev_http_requests_total",
		Help: "Dev server requests by route and status.",
	}, []string{"route", "status"})
	RetentionPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskchat_dev_retention_purged_total",
		Help: "Tombstoned messages physically removed by retention runs.",
	})
)
