// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

/*
Package metrics provides Prometheus metrics collection and export for observability.

The gateway sits between automations and a heavily rate-limited vehicle
cloud, so the metrics focus on where calls are saved rather than raw
throughput: coalesced waiters, cooldown rejections, cache hit age, and the
outcome mix of the upstream calls that do go out.

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

Key series:

  - upstream_requests_total{operation, outcome}: every real cloud call
  - coalesced_waiters_total{operation}: callers served without a cloud call
  - cooldown_rejections_total{class}: calls the local gate refused to send
  - status_cache_reads_total{result} / status_cache_age_seconds
  - session_logins_total{outcome} / session_invalidations_total
  - alerts_sent_total{classification} / alerts_suppressed_total
  - circuit_breaker_state{name}
  - api_requests_total{method, endpoint, status_code}
*/
package metrics
