// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commune"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds, excluding event streams",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StreamsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_streams_active",
			Help:      "Current number of open event streams",
		},
		[]string{"channel"},
	)

	FanoutListeners = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fanout_listeners",
			Help:      "Current number of subscribed listeners per registry",
		},
		[]string{"registry"},
	)

	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_deliveries_total",
			Help:      "Listener invocations by outcome",
		},
		[]string{"registry", "result"},
	)

	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Messages exchanged with other instances through the relay",
		},
		[]string{"channel", "direction", "result"},
	)
)
