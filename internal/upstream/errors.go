// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors classifying every upstream failure. Callers match with
// errors.Is; the wrapped detail carries the operation and HTTP specifics.
var (
	// ErrAuthenticationFailed indicates the vehicle cloud rejected the
	// credentials or the session token (HTTP 401/403).
	ErrAuthenticationFailed = errors.New("upstream authentication failed")

	// ErrRateLimited indicates the vehicle cloud throttled the request and
	// the retry budget is exhausted (HTTP 429).
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrTransient indicates a transport failure, timeout, or upstream
	// server error (5xx) that may succeed on a later attempt.
	ErrTransient = errors.New("upstream transient failure")

	// ErrNoData indicates the upstream answered successfully but the
	// payload was empty or unparseable.
	ErrNoData = errors.New("upstream returned no data")

	// ErrUnknown indicates a response outside the known taxonomy.
	ErrUnknown = errors.New("upstream unknown failure")
)

// classifyStatus maps a non-2xx upstream HTTP status to a sentinel error.
// 429 is handled by the retry loop before classification.
func classifyStatus(op string, code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrAuthenticationFailed, op, code, body)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrRateLimited, op, code, body)
	case code == http.StatusRequestTimeout || code >= 500:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrTransient, op, code, body)
	default:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrUnknown, op, code, body)
	}
}

// outcomeLabel maps an upstream error to the metrics outcome label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "unknown"
	}
}
