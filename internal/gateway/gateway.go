// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package gateway implements the protective core between HTTP callers and
// the vehicle cloud.
//
// Every upstream-touching operation runs the same pipeline: the request
// coordinator collapses concurrent same-key callers onto one upstream call,
// the cooldown tracker enforces the per-class minimum spacing, the session
// manager supplies (and lazily renews) the login session, and an
// authentication rejection triggers exactly one re-login and retry. Status
// reads are served from the in-memory cache wherever possible so the
// vehicle is woken only when something genuinely needs fresh state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/models"
	"github.com/evhome/bluelink-gateway/internal/upstream"
)

// Operation keys for the request coordinator. Keys double as the operation
// label on alerts and coalescing metrics (parameters stripped). Two keys
// exist for status retrieval: status.refresh forces the vehicle to report
// over the cellular link, status.poll reads the cloud's cached state.
const (
	keyStatusRefresh = "status.refresh"
	keyStatusPoll    = "status.poll"
	keyOdometer      = "odometer"
	keyLocation      = "location"
	keyLock          = "lock"
	keyUnlock        = "unlock"
	keyClimateStart  = "climate.start"
	keyClimateStop   = "climate.stop"
	keyChargeStart   = "charge.start"
	keyChargeStop    = "charge.stop"
)

// SnapshotStore persists the last known vehicle status across restarts.
// Implementations must tolerate concurrent Save calls.
type SnapshotStore interface {
	Save(status *models.VehicleStatus) error
	Load() (*models.VehicleStatus, error)
}

// stateReporter is implemented by upstream clients that expose circuit
// breaker state (see upstream.BreakerClient).
type stateReporter interface {
	State() string
}

// Deps are the collaborators a Gateway is assembled from. Snapshots may be
// nil, which disables persistence.
type Deps struct {
	Client      upstream.Client
	Sessions    *SessionManager
	Cache       *StatusCache
	Cooldowns   *CooldownTracker
	Coordinator *RequestCoordinator
	Notifier    *AlertNotifier
	Snapshots   SnapshotStore
}

// Gateway is the façade the HTTP layer calls. All methods are safe for
// concurrent use.
type Gateway struct {
	client      upstream.Client
	sessions    *SessionManager
	cache       *StatusCache
	cooldowns   *CooldownTracker
	coordinator *RequestCoordinator
	notifier    *AlertNotifier
	snapshots   SnapshotStore

	staleness   time.Duration
	upstreamCfg config.UpstreamConfig

	// refreshCh carries background poll triggers to the RefreshWorker.
	// Capacity 1: triggers raised while a poll is pending coalesce.
	refreshCh chan struct{}
}

// New assembles a Gateway from its collaborators.
func New(cfg *config.Config, deps Deps) *Gateway {
	staleness := cfg.Cache.StalenessThreshold
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	return &Gateway{
		client:      deps.Client,
		sessions:    deps.Sessions,
		cache:       deps.Cache,
		cooldowns:   deps.Cooldowns,
		coordinator: deps.Coordinator,
		notifier:    deps.Notifier,
		snapshots:   deps.Snapshots,
		staleness:   staleness,
		upstreamCfg: cfg.Upstream,
		refreshCh:   make(chan struct{}, 1),
	}
}

// ReadStatus returns the cached vehicle status and its age. A snapshot
// older than the staleness threshold is still returned immediately, with a
// background poll scheduled to catch the cache up. Only a completely empty
// cache blocks the caller, on a forced refresh.
func (g *Gateway) ReadStatus(ctx context.Context) (*models.VehicleStatus, time.Duration, error) {
	st, age, err := g.cache.ReadCached()
	if err == nil {
		if age > g.staleness {
			logging.Debug().
				Dur("age", age).
				Dur("threshold", g.staleness).
				Msg("Cached status stale, scheduling background poll")
			g.TriggerRefresh()
		}
		return st, age, nil
	}

	// Nothing has ever been retrieved. Block this caller on a forced
	// refresh so the first read after a cold start returns real data.
	st, err = g.RefreshStatus(ctx)
	if err != nil {
		return nil, 0, err
	}
	return st, 0, nil
}

// RefreshStatus forces the vehicle to report fresh state over the cellular
// link and returns the resulting snapshot. Slow (tens of seconds) and
// metered by the refresh-class cooldown.
func (g *Gateway) RefreshStatus(ctx context.Context) (*models.VehicleStatus, error) {
	v, err := g.run(ctx, keyStatusRefresh, ClassRefresh, func(ctx context.Context, sess *upstream.Session) (interface{}, error) {
		st, err := g.client.RefreshStatus(ctx, sess)
		if err != nil {
			return nil, err
		}
		g.storeFresh(st)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.VehicleStatus), nil
}

// ReadSoC returns the state-of-charge slice of the cached status, under
// the same staleness policy as ReadStatus.
func (g *Gateway) ReadSoC(ctx context.Context) (*models.SoC, time.Duration, error) {
	st, age, err := g.ReadStatus(ctx)
	if err != nil {
		return nil, 0, err
	}
	soc := st.SoC()
	return &soc, age, nil
}

// ReadRange returns the driving-range slice of the cached status, under
// the same staleness policy as ReadStatus.
func (g *Gateway) ReadRange(ctx context.Context) (*models.Range, time.Duration, error) {
	st, age, err := g.ReadStatus(ctx)
	if err != nil {
		return nil, 0, err
	}
	rng := st.Range()
	return &rng, age, nil
}

// ReadOdometer returns the odometer reading. When forced is false it is
// sliced from the cached status; when forced (or when the cache is empty)
// the dedicated upstream odometer endpoint is read live.
func (g *Gateway) ReadOdometer(ctx context.Context, forced bool) (*models.Odometer, error) {
	if !forced {
		if st, _, err := g.cache.ReadCached(); err == nil {
			odo := st.Odometer()
			return &odo, nil
		}
	}

	v, err := g.run(ctx, keyOdometer, ClassRefresh, func(ctx context.Context, sess *upstream.Session) (interface{}, error) {
		km, err := g.client.Odometer(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &models.Odometer{OdometerKm: km, RetrievedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Odometer), nil
}

// ReadLocation reads the vehicle position. Positions go stale too fast for
// caching to be useful, so this always queries upstream (refresh-class
// cooldown applies).
func (g *Gateway) ReadLocation(ctx context.Context) (*models.Location, error) {
	v, err := g.run(ctx, keyLocation, ClassRefresh, func(ctx context.Context, sess *upstream.Session) (interface{}, error) {
		return g.client.Location(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Location), nil
}

// Lock locks the doors.
func (g *Gateway) Lock(ctx context.Context) error {
	return g.command(ctx, keyLock, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.Lock(ctx, sess)
	})
}

// Unlock unlocks the doors.
func (g *Gateway) Unlock(ctx context.Context) error {
	return g.command(ctx, keyUnlock, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.Unlock(ctx, sess)
	})
}

// StartClimate starts remote climatisation with the resolved settings.
// The coordinator key carries the settings so two calls with different
// temperatures are not collapsed onto one upstream command.
func (g *Gateway) StartClimate(ctx context.Context, req models.ClimateRequest) error {
	spec := req.Resolve()
	key := fmt.Sprintf("%s?temp=%g&defrost=%t&climate=%t&heating=%t",
		keyClimateStart, spec.TemperatureC, spec.Defrost, spec.Climate, spec.Heating)
	return g.command(ctx, key, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.StartClimate(ctx, sess, spec)
	})
}

// StopClimate stops remote climatisation.
func (g *Gateway) StopClimate(ctx context.Context) error {
	return g.command(ctx, keyClimateStop, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.StopClimate(ctx, sess)
	})
}

// StartCharge starts charging.
func (g *Gateway) StartCharge(ctx context.Context) error {
	return g.command(ctx, keyChargeStart, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.StartCharge(ctx, sess)
	})
}

// StopCharge stops charging.
func (g *Gateway) StopCharge(ctx context.Context) error {
	return g.command(ctx, keyChargeStop, func(ctx context.Context, sess *upstream.Session) error {
		return g.client.StopCharge(ctx, sess)
	})
}

// Info describes the configured vehicle. The VIN is masked; the session's
// VIN (chosen at login) wins over the configured one once known.
func (g *Gateway) Info() models.VehicleInfo {
	vin := g.sessions.VIN()
	if vin == "" {
		vin = g.upstreamCfg.VIN
	}
	return models.VehicleInfo{
		VIN:    maskVIN(vin),
		Region: g.upstreamCfg.RegionName(),
		Brand:  g.upstreamCfg.BrandName(),
	}
}

// Health is the internal health signal set reported by GET /healthz.
type Health struct {
	SessionState    string   `json:"session_state"`
	CacheAgeSeconds *float64 `json:"cache_age_seconds,omitempty"`
	BreakerState    string   `json:"breaker_state,omitempty"`
	InFlight        int      `json:"in_flight_operations"`
}

// Health reports session, cache, breaker, and coordinator state.
// CacheAgeSeconds is nil while the cache is empty.
func (g *Gateway) Health() Health {
	h := Health{
		SessionState: g.sessions.State(),
		InFlight:     g.coordinator.InFlight(),
	}
	if age, ok := g.cache.Age(); ok {
		secs := age.Seconds()
		h.CacheAgeSeconds = &secs
	}
	if sr, ok := g.client.(stateReporter); ok {
		h.BreakerState = sr.State()
	}
	return h
}

// command runs a vehicle command through the standard pipeline and, on
// success, schedules a background status poll so the cache catches up with
// the state change the command caused.
func (g *Gateway) command(ctx context.Context, key string, fn func(context.Context, *upstream.Session) error) error {
	_, err := g.run(ctx, key, ClassCommand, func(ctx context.Context, sess *upstream.Session) (interface{}, error) {
		return nil, fn(ctx, sess)
	})
	if err != nil {
		return err
	}
	g.TriggerRefresh()
	return nil
}

// run executes one coordinated operation: same-key callers collapse onto a
// single upstream call, and the leader's outcome feeds the alert notifier.
func (g *Gateway) run(ctx context.Context, key string, class CooldownClass, fn func(context.Context, *upstream.Session) (interface{}, error)) (interface{}, error) {
	op := metricOperation(key)
	return g.coordinator.Execute(ctx, key, func(workCtx context.Context) (interface{}, error) {
		v, err := g.callUpstream(workCtx, class, fn)
		if err != nil {
			g.notifier.Report(op, err)
			return nil, err
		}
		g.notifier.ReportSuccess()
		return v, nil
	})
}

// callUpstream is the admitted-call pipeline: cooldown gate, session, the
// call itself, and the single re-login retry on an authentication
// rejection. The cooldown window is consumed by every cycle that reached
// upstream, whatever the outcome; a cooldown rejection or a failed initial
// login consumes nothing.
func (g *Gateway) callUpstream(ctx context.Context, class CooldownClass, fn func(context.Context, *upstream.Session) (interface{}, error)) (interface{}, error) {
	if err := g.cooldowns.TryAcquire(class); err != nil {
		return nil, err
	}

	sess, err := g.sessions.Obtain(ctx)
	if err != nil {
		return nil, err
	}

	v, err := fn(ctx, sess)
	if errors.Is(err, upstream.ErrAuthenticationFailed) {
		// The cloud rejected a session that looked valid locally.
		// Re-login once and retry; a second rejection is final.
		logging.Info().Msg("Upstream rejected session, re-authenticating")
		g.sessions.Invalidate()

		fresh, loginErr := g.sessions.Obtain(ctx)
		if loginErr != nil {
			g.cooldowns.RecordAttempt(class)
			return nil, loginErr
		}
		v, err = fn(ctx, fresh)
	}

	g.cooldowns.RecordAttempt(class)
	return v, err
}

// storeFresh records a snapshot in the cache and, when it was accepted as
// newer, persists it for the next restart.
func (g *Gateway) storeFresh(st *models.VehicleStatus) {
	if !g.cache.RecordFresh(st) {
		return
	}
	if g.snapshots == nil {
		return
	}
	if err := g.snapshots.Save(st); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist status snapshot")
	}
}
