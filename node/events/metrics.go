package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "arcdna"
	subsystem        = "event_distributor"
)

var (
	eventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "events_processed_total",
			Help:      "Total number of program log notifications processed",
		},
		// event_type: "emitted" or "failed"
		[]string{"event_type"},
	)

	eventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "event_processing_duration_seconds",
			Help:      "Time taken to decode and broadcast a notification",
			Buckets:   prometheus.DefBuckets,
		},
	)

	subscribersCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "subscribers_count",
			Help:      "Current number of active subscribers",
		},
	)

	subscriptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "subscriptions_total",
			Help:      "Total number of subscriptions created",
		},
	)

	unsubscriptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "unsubscriptions_total",
			Help:      "Total number of unsubscriptions",
		},
	)

	droppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "dropped_events_total",
			Help:      "Events dropped because a subscriber buffer was full",
		},
	)

	resubscribesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "resubscribes_total",
			Help:      "Times the log subscription was re-established",
		},
	)

	distributorStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "starts_total",
			Help:      "Total number of distributor starts",
		},
	)

	distributorStopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "stops_total",
			Help:      "Total number of distributor stops",
		},
	)
)
