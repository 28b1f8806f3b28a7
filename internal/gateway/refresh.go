// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
	"github.com/evhome/bluelink-gateway/internal/upstream"
)

// TriggerRefresh schedules a background status poll without blocking the
// caller. While a trigger is already pending, further triggers coalesce
// into it.
func (g *Gateway) TriggerRefresh() {
	select {
	case g.refreshCh <- struct{}{}:
	default:
	}
}

// RefreshWorker drains the gateway's refresh triggers and runs the
// background status polls they request. Stale cached reads and completed
// vehicle commands raise triggers; the worker keeps that work off the
// request path.
type RefreshWorker struct {
	gw *Gateway
}

// NewRefreshWorker creates a worker bound to gw.
func NewRefreshWorker(gw *Gateway) *RefreshWorker {
	return &RefreshWorker{gw: gw}
}

// Run processes refresh triggers until the context is canceled. It returns
// ctx.Err() on normal shutdown.
func (w *RefreshWorker) Run(ctx context.Context) error {
	logging.Info().Msg("Background status refresh worker started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Background status refresh worker stopped")
			return ctx.Err()
		case <-w.gw.refreshCh:
			w.gw.pollStatus()
		}
	}
}

// pollStatus reads the cloud's cached vehicle state and records it. It
// deliberately avoids the forced-refresh endpoint: background polls must
// never wake the vehicle. Cooldown and rate-limit rejections are routine
// here (a foreground operation may have just consumed the window), so they
// log at debug rather than warn.
func (g *Gateway) pollStatus() {
	start := time.Now()
	_, err := g.run(context.Background(), keyStatusPoll, ClassRefresh, func(ctx context.Context, sess *upstream.Session) (interface{}, error) {
		st, err := g.client.CachedStatus(ctx, sess)
		if err != nil {
			return nil, err
		}
		g.storeFresh(st)
		return st, nil
	})

	var cooldownErr *CooldownActiveError
	switch {
	case err == nil:
		metrics.BackgroundRefreshesTotal.WithLabelValues("success").Inc()
		logging.Debug().
			Dur("elapsed", time.Since(start)).
			Msg("Background status poll completed")
	case errors.As(err, &cooldownErr), errors.Is(err, upstream.ErrRateLimited):
		metrics.BackgroundRefreshesTotal.WithLabelValues("throttled").Inc()
		logging.Debug().
			Err(err).
			Msg("Background status poll throttled")
	default:
		metrics.BackgroundRefreshesTotal.WithLabelValues("failure").Inc()
		logging.Warn().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("Background status poll failed")
	}
}
