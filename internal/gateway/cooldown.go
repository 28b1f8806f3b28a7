// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"sync"
	"time"

	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

// CooldownClass partitions upstream operations into rate classes. Exactly
// two exist: all status, odometer and location retrievals share the
// refresh window; lock, unlock, climate and charge commands share the
// command window. The command window is the tighter one - repeated remote
// commands drain the vehicle's 12V battery and provoke upstream throttling.
type CooldownClass int

const (
	ClassRefresh CooldownClass = iota
	ClassCommand
)

func (c CooldownClass) String() string {
	switch c {
	case ClassRefresh:
		return "refresh"
	case ClassCommand:
		return "command"
	default:
		return "unknown"
	}
}

// CooldownTracker enforces a minimum interval between upstream attempts
// per class. It tracks the last attempt time, not outcomes: a rate-limited
// or failed attempt consumes the window exactly like a successful one.
type CooldownTracker struct {
	mu      sync.Mutex
	windows map[CooldownClass]time.Duration
	last    map[CooldownClass]time.Time
}

// NewCooldownTracker builds a tracker with the configured windows.
func NewCooldownTracker(cfg config.CooldownConfig) *CooldownTracker {
	return &CooldownTracker{
		windows: map[CooldownClass]time.Duration{
			ClassRefresh: cfg.StatusRefresh,
			ClassCommand: cfg.Command,
		},
		last: make(map[CooldownClass]time.Time),
	}
}

// TryAcquire reports whether an upstream attempt in the class is allowed
// now. Inside the window it returns CooldownActiveError carrying the
// remaining wait so callers can surface "try again in Ns".
func (t *CooldownTracker) TryAcquire(class CooldownClass) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[class]
	if !ok {
		return nil
	}

	window := t.windows[class]
	elapsed := time.Since(last)
	if elapsed < window {
		metrics.CooldownRejectionsTotal.WithLabelValues(class.String()).Inc()
		return &CooldownActiveError{Class: class, Remaining: window - elapsed}
	}
	return nil
}

// RecordAttempt stamps the last-invocation time for the class. Called once
// per admitted operation after the upstream attempt completes, regardless
// of outcome.
func (t *CooldownTracker) RecordAttempt(class CooldownClass) {
	t.mu.Lock()
	t.last[class] = time.Now()
	t.mu.Unlock()
}

// Remaining returns how much of the class window is left, zero when open.
func (t *CooldownTracker) Remaining(class CooldownClass) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[class]
	if !ok {
		return 0
	}
	if remaining := t.windows[class] - time.Since(last); remaining > 0 {
		return remaining
	}
	return 0
}
