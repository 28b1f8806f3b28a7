// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"sync"
	"time"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
	"github.com/evhome/bluelink-gateway/internal/models"
)

// StatusCache holds the last known vehicle status snapshot. The snapshot
// is replaced whole under the write lock and never mutated in place, so
// readers share the pointer safely; they must treat it as read-only.
//
// The monotonic guard: a snapshot is stored only if its RetrievedAt is
// strictly newer than the held one. A slow upstream call finishing after
// a faster concurrent one must not roll the cache backwards, even though
// the coordinator's single-flight property makes that ordering rare.
type StatusCache struct {
	mu     sync.RWMutex
	status *models.VehicleStatus
}

func NewStatusCache() *StatusCache {
	return &StatusCache{}
}

// ReadCached returns the held snapshot and its age. Staleness policy is
// the caller's concern: stale data is returned, not withheld. ErrCacheEmpty
// when nothing has ever been stored.
func (c *StatusCache) ReadCached() (*models.VehicleStatus, time.Duration, error) {
	c.mu.RLock()
	st := c.status
	c.mu.RUnlock()

	if st == nil {
		metrics.RecordCacheRead(false, 0)
		return nil, 0, ErrCacheEmpty
	}

	age := time.Since(st.RetrievedAt)
	metrics.RecordCacheRead(true, age)
	return st, age, nil
}

// RecordFresh stores the snapshot if it is strictly newer than the held
// one and reports whether it was stored. Snapshots without a retrieval
// timestamp are rejected outright.
func (c *StatusCache) RecordFresh(st *models.VehicleStatus) bool {
	if st == nil || st.RetrievedAt.IsZero() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != nil && !st.RetrievedAt.After(c.status.RetrievedAt) {
		logging.Debug().
			Time("held", c.status.RetrievedAt).
			Time("arrived", st.RetrievedAt).
			Msg("Discarding out-of-order status snapshot")
		return false
	}

	c.status = st
	return true
}

// Age returns the age of the held snapshot, or false when the cache is
// empty. Used by the health endpoint.
func (c *StatusCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.status == nil {
		return 0, false
	}
	return time.Since(c.status.RetrievedAt), true
}
