// Package metrics holds the Prometheus instrumentation for detection sessions,
// recommendation resolution and the playlist stores.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample outcomes.
const (
	SampleAccepted = "accepted"
	SampleDropped  = "dropped"
	SampleStale    = "stale"
	SampleFailed   = "failed"
	SampleIgnored  = "ignored"
)

var (
	// Detection
	SamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlist_samples_total",
			Help: "Classification samples seen by detection sessions, by outcome",
		},
		[]string{"outcome"},
	)

	SessionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlist_sessions_resolved_total",
			Help: "Detection sessions that resolved an emotion, by label",
		},
		[]string{"emotion"},
	)

	SessionsAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodlist_sessions_aborted_total",
			Help: "Detection sessions aborted by the idle tick limit",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodlist_sessions_active",
			Help: "Detection sessions currently registered",
		},
	)

	// Recommendation
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlist_resolutions_total",
			Help: "Recommendation resolutions by winning tier",
		},
		[]string{"tier"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodlist_store_query_duration_seconds",
			Help:    "Playlist store query latency by tier",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
		[]string{"tier"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlist_store_query_errors_total",
			Help: "Failed playlist store queries by tier",
		},
		[]string{"tier"},
	)

	// Store circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodlist_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodlist_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	// Worker pool
	FrameJobsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodlist_frame_jobs_dropped_total",
			Help: "Frame classification jobs dropped because a worker queue was full",
		},
	)

	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodlist_classify_duration_seconds",
			Help:    "Frame classification latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)
