// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

/*
Package middleware provides HTTP middleware for the gateway's API surface.

Key components:

  - RequestID: UUID request tracking wired into the logging context
  - PrometheusMetrics: per-request instrumentation plus slow-request logging
  - Compression: gzip for clients that accept it

The middlewares use the http.HandlerFunc shape and are bridged onto the
chi router with a small adapter in internal/api:

	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Handlers read the request ID back out of the context:

	requestID := middleware.GetRequestID(r.Context())

All components are safe for concurrent use; compression pools its gzip
writers.
*/
package middleware
