package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks collaboration sessions currently accepting joins.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_active_sessions",
			Help: "Number of open collaboration sessions",
		},
	)

	// ConnectedParticipants tracks live websocket participants across all sessions.
	ConnectedParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroom_connected_participants",
			Help: "Number of currently connected participants",
		},
	)

	// BroadcastsDelivered counts events fanned out to participants, by event type.
	BroadcastsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_broadcasts_delivered_total",
			Help: "Total events delivered to participant connections",
		},
		[]string{"event"},
	)

	// DeliveryFailures counts handles that rejected an event and were pruned.
	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroom_delivery_failures_total",
			Help: "Total broadcast deliveries that failed and triggered cleanup",
		},
	)

	// EventsDropped counts inbound events discarded before broadcast, by reason
	// (unauthorized|unknown_type|closed).
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroom_events_dropped_total",
			Help: "Total inbound events dropped without broadcast",
		},
		[]string{"reason"},
	)

	// APILatency observes HTTP request latency by method, route, and status.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncroom_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
