// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

// slowRequestThreshold flags requests that outlive even a forced refresh.
// Command and refresh endpoints legitimately take tens of seconds while
// the vehicle wakes, so anything past this is a wedged waiter, not a slow
// vehicle.
const slowRequestThreshold = 45 * time.Second

// PrometheusMetrics instruments each request: active-request gauge,
// per-endpoint counters and latency histograms, and a warning for
// requests exceeding slowRequestThreshold.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()

		wrapper := &metricsResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(wrapper, r)

		duration := time.Since(start)

		metrics.RecordAPIRequest(
			r.Method,
			r.URL.Path,
			strconv.Itoa(wrapper.statusCode),
			duration,
		)

		if duration > slowRequestThreshold {
			logging.Warn().
				Str("method", r.Method).
				Str("path", logging.SanitizeValue(r.URL.Path)).
				Int("status", wrapper.statusCode).
				Dur("duration", duration).
				Msg("Slow request detected")
		}
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
