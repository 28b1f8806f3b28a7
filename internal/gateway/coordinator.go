// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

// inFlightCall is one pending upstream operation with its waiter set.
// result is written exactly once, before done is closed.
type inFlightCall struct {
	done    chan struct{}
	value   interface{}
	err     error
	waiters int
}

// RequestCoordinator collapses concurrent same-key operations onto a
// single upstream call (single-flight). Distinct keys run independently;
// same-key callers that arrive while a call is in flight wait for its
// shared result instead of triggering their own rate-limit-consuming
// upstream call.
//
// The work function runs on a context detached from any individual
// caller: a dispatched vehicle command cannot be cancelled, so a waiter
// whose own context expires first receives ResultUnknownError while the
// call keeps running for the remaining waiters and for its side effects
// (cache, cooldown, alerting).
type RequestCoordinator struct {
	mu         sync.Mutex
	flights    map[string]*inFlightCall
	workBudget time.Duration
}

// NewRequestCoordinator builds a coordinator whose detached work context
// is bounded by workBudget. The budget must cover a login, the operation
// itself, and the single re-login retry.
func NewRequestCoordinator(workBudget time.Duration) *RequestCoordinator {
	return &RequestCoordinator{
		flights:    make(map[string]*inFlightCall),
		workBudget: workBudget,
	}
}

// Execute runs work under the given operation key, coalescing with any
// in-flight call for the same key. Every waiter that joined before the
// call completes receives the identical result.
func (rc *RequestCoordinator) Execute(ctx context.Context, key string, work func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	rc.mu.Lock()
	if call, ok := rc.flights[key]; ok {
		call.waiters++
		waiters := call.waiters
		rc.mu.Unlock()

		metrics.CoalescedWaitersTotal.WithLabelValues(metricOperation(key)).Inc()
		logging.Debug().Str("operation", key).Int("waiters", waiters).Msg("Joined in-flight operation")

		return rc.wait(ctx, key, call)
	}

	call := &inFlightCall{done: make(chan struct{}), waiters: 1}
	rc.flights[key] = call
	rc.mu.Unlock()

	metrics.InFlightRequests.Inc()

	go func() {
		workCtx, cancel := context.WithTimeout(context.Background(), rc.workBudget)
		defer cancel()

		call.value, call.err = work(workCtx)

		// Remove the flight before releasing waiters: a caller arriving
		// after this point starts a fresh call rather than adopting a
		// finished result it never asked for.
		rc.mu.Lock()
		delete(rc.flights, key)
		rc.mu.Unlock()

		metrics.InFlightRequests.Dec()
		close(call.done)
	}()

	return rc.wait(ctx, key, call)
}

// wait blocks until the shared call completes or the waiter's own context
// expires. Expiry does not cancel the call - the outcome is undetermined
// from this waiter's point of view, nothing more.
func (rc *RequestCoordinator) wait(ctx context.Context, key string, call *inFlightCall) (interface{}, error) {
	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return nil, &ResultUnknownError{Operation: key, Cause: ctx.Err()}
	}
}

// InFlight reports the number of distinct keys currently executing.
func (rc *RequestCoordinator) InFlight() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.flights)
}

// metricOperation strips per-call parameters from an operation key so
// metric label cardinality stays bounded.
func metricOperation(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}
