package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransferTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_transitions_total",
			Help: "Committed transfer status transitions",
		},
		[]string{"from", "to"},
	)

	// reason is one of validation, not_found, unauthorized, invalid_transition, internal
	TransferTransitionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_transition_failures_total",
			Help: "Rejected or failed transfer workflow operations",
		},
		[]string{"reason"},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transfer_feed_subscribers",
			Help: "Open websocket subscriptions to the transfer feed",
		},
	)
)
