package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "submissions_total",
			Help:      "Total number of computation requests submitted",
		},
		[]string{"variant", "status"}, // status: success/duplicate/error
	)

	submitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "submit_duration_seconds",
			Help:      "Duration from reservation to confirmed queueing transaction",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	resultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "results_total",
			Help:      "Total number of awaited computations by outcome",
		},
		[]string{"outcome"}, // outcome: finalized/failed/timed_out/cancelled
	)

	awaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "await_duration_seconds",
			Help:      "Time spent waiting for a computation to finalize",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		},
	)

	lookupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "transaction_lookup_failures_total",
			Help:      "Events skipped because their transaction accounts could not be loaded",
		},
	)

	inflightComputations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "inflight_computations",
			Help:      "Computations currently being awaited",
		},
	)

	setupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arcdna",
			Subsystem: "execution",
			Name:      "setup_total",
			Help:      "Computation definition setup attempts by outcome",
		},
		[]string{"variant", "outcome"}, // outcome: initialized/existing/error
	)
)
