// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

// AlertNotifier turns operation failures into webhook alerts.
//
// Not every failure deserves a page. Authentication failures and unclassified
// upstream errors escalate immediately; transient and rate-limit errors only
// escalate after a consecutive streak crosses the configured threshold, since
// the vehicle cloud routinely throws isolated 5xx responses that recover on
// their own. Cooldown rejections, empty caches, and result-unknown outcomes
// never escalate: they are expected behavior, not faults.
//
// Duplicate alerts for the same classification within the dedup window are
// suppressed so a dead upstream produces one alert, not one per poll.
type AlertNotifier struct {
	mu       sync.Mutex
	cfg      config.AlertsConfig
	dispatch alerts.DispatchFunc

	lastSent map[Classification]time.Time
	streaks  map[Classification]int
}

// NewAlertNotifier creates a notifier delivering through dispatch.
// A nil dispatch disables delivery; failures are still counted so streak
// state stays accurate if alerting is enabled later.
func NewAlertNotifier(cfg config.AlertsConfig, dispatch alerts.DispatchFunc) *AlertNotifier {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &AlertNotifier{
		cfg:      cfg,
		dispatch: dispatch,
		lastSent: make(map[Classification]time.Time),
		streaks:  make(map[Classification]int),
	}
}

// Report records a failed operation and dispatches an alert when the
// failure class warrants one. Dispatch is fire-and-forget: Report never
// blocks the calling operation on webhook latency.
func (n *AlertNotifier) Report(operation string, err error) {
	if err == nil {
		return
	}
	class := Classify(err)

	n.mu.Lock()
	escalate := n.shouldEscalateLocked(class)
	if escalate && n.suppressedLocked(class) {
		n.mu.Unlock()
		metrics.AlertsSuppressedTotal.WithLabelValues(string(class)).Inc()
		logging.Debug().
			Str("classification", string(class)).
			Str("operation", operation).
			Msg("Alert suppressed inside dedup window")
		return
	}
	if escalate {
		n.lastSent[class] = time.Now()
	}
	n.mu.Unlock()

	if !escalate {
		return
	}

	if n.dispatch == nil {
		logging.Debug().
			Str("classification", string(class)).
			Str("operation", operation).
			Msg("Alert dispatch disabled, dropping event")
		return
	}

	event := alerts.NewEvent(string(class), operation, err.Error())
	go n.deliver(event)
}

// ReportSuccess resets the consecutive-failure streaks after a healthy
// upstream round trip.
func (n *AlertNotifier) ReportSuccess() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for class := range n.streaks {
		delete(n.streaks, class)
	}
}

// shouldEscalateLocked applies the per-class escalation policy and
// advances streak counters. Caller holds n.mu.
func (n *AlertNotifier) shouldEscalateLocked(class Classification) bool {
	switch class {
	case ClassificationAuth, ClassificationUnknown:
		return true
	case ClassificationTransient, ClassificationRateLimited:
		if n.cfg.TransientThreshold <= 0 {
			return false
		}
		n.streaks[class]++
		return n.streaks[class] >= n.cfg.TransientThreshold
	default:
		// Cooldown, no-data, and result-unknown are expected outcomes.
		return false
	}
}

// suppressedLocked reports whether an alert for class fired inside the
// dedup window. Caller holds n.mu.
func (n *AlertNotifier) suppressedLocked(class Classification) bool {
	if n.cfg.DedupWindow <= 0 {
		return false
	}
	last, ok := n.lastSent[class]
	return ok && time.Since(last) < n.cfg.DedupWindow
}

// deliver runs one delivery attempt on its own goroutine with a bounded
// timeout, detached from the request that triggered the alert.
func (n *AlertNotifier) deliver(event *alerts.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.DispatchTimeout)
	defer cancel()

	if err := n.dispatch(ctx, event); err != nil {
		metrics.AlertDispatchFailuresTotal.Inc()
		logging.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("classification", event.Classification).
			Msg("Alert delivery failed")
		return
	}

	metrics.AlertsSentTotal.WithLabelValues(event.Classification).Inc()
	logging.Info().
		Str("event_id", event.ID).
		Str("classification", event.Classification).
		Str("operation", event.Operation).
		Msg("Alert delivered")
}
