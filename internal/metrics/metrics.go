// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the gateway:
// - upstream vehicle-cloud call volume, latency, and outcome
// - request coalescing and cooldown effectiveness
// - status cache freshness
// - session lifecycle
// - alert pipeline
// - HTTP facade latency and throughput

var (
	// Upstream vehicle-cloud metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream vehicle-cloud calls",
		},
		[]string{"operation", "outcome"}, // outcome: "success", "auth_failed", "rate_limited", "transient", "no_data", "unknown"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream vehicle-cloud calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}, // vehicle wake-ups can take tens of seconds
		},
		[]string{"operation"},
	)

	// Request coordination metrics
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inflight_requests",
			Help: "Current number of distinct in-flight upstream operations",
		},
	)

	CoalescedWaitersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalesced_waiters_total",
			Help: "Total number of callers that joined an already in-flight operation instead of triggering their own upstream call",
		},
		[]string{"operation"},
	)

	// Cooldown metrics
	CooldownRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cooldown_rejections_total",
			Help: "Total number of operations rejected by the local cooldown gate",
		},
		[]string{"class"}, // "refresh", "command"
	)

	// Status cache metrics
	CacheReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_cache_reads_total",
			Help: "Total number of status cache reads",
		},
		[]string{"result"}, // "hit", "miss"
	)

	CacheAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "status_cache_age_seconds",
			Help: "Age of the cached vehicle status at last read",
		},
	)

	BackgroundRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_refreshes_total",
			Help: "Total number of staleness-triggered background refreshes",
		},
		[]string{"outcome"}, // "success", "throttled", "failure"
	)

	// Session metrics
	SessionLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Total number of upstream login attempts",
		},
		[]string{"outcome"}, // "success", "auth", "transient"
	)

	SessionInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_invalidations_total",
			Help: "Total number of session invalidations (reactive, on upstream auth failure)",
		},
	)

	// Alert metrics
	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Total number of alert notifications dispatched",
		},
		[]string{"classification"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the de-duplication window",
		},
		[]string{"classification"},
	)

	AlertDispatchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_dispatch_failures_total",
			Help: "Total number of alert deliveries that failed (best-effort, never propagated)",
		},
	)

	// Event pipeline metrics (durable alert queue, when enabled)
	EventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_events_published_total",
			Help: "Total number of alert events enqueued on the durable stream",
		},
	)

	EventDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_event_deliveries_total",
			Help: "Total number of delivery attempts for queued alert events",
		},
		[]string{"outcome"}, // "success", "transient", "poison"
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker by outcome (success, failure, rejected)",
		},
		[]string{"name", "outcome"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures observed by the circuit breaker",
		},
		[]string{"name"},
	)

	// HTTP facade metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}, // forced refreshes block on the vehicle
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordUpstreamRequest records one upstream call with its classification.
func RecordUpstreamRequest(operation, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCacheRead records a status cache read and, on a hit, the age of the
// snapshot that was served.
func RecordCacheRead(hit bool, age time.Duration) {
	if hit {
		CacheReadsTotal.WithLabelValues("hit").Inc()
		CacheAgeSeconds.Set(age.Seconds())
	} else {
		CacheReadsTotal.WithLabelValues("miss").Inc()
	}
}
