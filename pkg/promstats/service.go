// Prometheus metric definitions for the telemetry pipeline.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesIngested counts accepted ingestion batches.
	BatchesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scada_batches_ingested_total",
			Help: "Total number of ingestion batches accepted",
		},
	)

	// ReadingsRejected counts per-tag rejections (non-numeric values).
	ReadingsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scada_readings_rejected_total",
			Help: "Total number of readings rejected during normalization",
		},
	)

	// FlushesTotal counts persistence flushes by outcome.
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scada_flushes_total",
			Help: "Total number of persistence flushes",
		},
		[]string{"outcome"},
	)

	// FlushDuration observes how long a flush takes including retries.
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scada_flush_duration_seconds",
			Help:    "Persistence flush duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// LiveEventsDropped counts envelopes dropped for slow subscribers.
	LiveEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scada_live_events_dropped_total",
			Help: "Total number of live events dropped for slow or absent subscribers",
		},
	)

	// LiveSubscribers tracks currently connected pull-stream viewers.
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scada_live_subscribers",
			Help: "Number of currently connected live stream subscribers",
		},
	)

	// RequestsTotal counts HTTP requests by endpoint, method and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scada_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scada_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)
)
