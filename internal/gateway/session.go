// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
	"github.com/evhome/bluelink-gateway/internal/upstream"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateInvalid
)

func (s sessionState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// SessionManager owns the single upstream session. Login is lazy: the
// first Obtain after startup, an expiry, or an Invalidate performs it.
// There is no background refresh timer - sessions are validated
// reactively, when an upstream call reports an authentication failure
// and the operation invalidates and retries once.
type SessionManager struct {
	mu     sync.Mutex
	client upstream.Client
	sess   *upstream.Session
	state  sessionState
	margin time.Duration
}

// NewSessionManager builds a manager that logs in through client. margin
// is subtracted from the session's expiry estimate so a session is
// replaced shortly before upstream would start rejecting it.
func NewSessionManager(client upstream.Client, margin time.Duration) *SessionManager {
	return &SessionManager{
		client: client,
		margin: margin,
	}
}

// Obtain returns a usable session, logging in if none is held, the held
// one is invalid, or it is about to expire. The lock is held through the
// login so concurrent obtainers wait for the one attempt instead of
// racing their own.
//
// An authentication failure is final - credentials do not become valid by
// retrying - and surfaces unchanged. Transient failures also surface; the
// caller decides whether its operation warrants another attempt.
func (m *SessionManager) Obtain(ctx context.Context) (*upstream.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateAuthenticated && m.sess.Usable(time.Now(), m.margin) {
		return m.sess, nil
	}

	sess, err := m.client.Login(ctx)
	if err != nil {
		m.sess = nil
		m.state = stateUnauthenticated
		metrics.SessionLoginsTotal.WithLabelValues(loginOutcome(err)).Inc()
		logging.Warn().Err(err).Msg("Upstream login failed")
		return nil, err
	}

	m.sess = sess
	m.state = stateAuthenticated
	metrics.SessionLoginsTotal.WithLabelValues("success").Inc()
	logging.Info().
		Str("vin", maskVIN(sess.VIN)).
		Time("expires_at", sess.ExpiresAt).
		Msg("Upstream session established")
	return sess, nil
}

// Invalidate discards the held session. The next Obtain logs in again.
// Called by operations whose upstream call came back as an authentication
// failure despite a session that looked valid locally.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	hadSession := m.sess != nil
	m.sess = nil
	m.state = stateInvalid
	m.mu.Unlock()

	metrics.SessionInvalidationsTotal.Inc()
	if hadSession {
		logging.Info().Msg("Session invalidated, next operation will re-login")
	}
}

// VIN returns the vehicle identifier the upstream selected at login, or
// the empty string before the first successful login.
func (m *SessionManager) VIN() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess != nil {
		return m.sess.VIN
	}
	return ""
}

// State returns the lifecycle state name for the health endpoint.
func (m *SessionManager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateAuthenticated && !m.sess.Usable(time.Now(), m.margin) {
		return "expired"
	}
	return m.state.String()
}

func loginOutcome(err error) string {
	if errors.Is(err, upstream.ErrAuthenticationFailed) {
		return "auth_failed"
	}
	return "transient"
}

// maskVIN hides all but the last four characters of a VIN in logs and
// responses.
func maskVIN(vin string) string {
	if len(vin) <= 4 {
		return "****"
	}
	return "****" + vin[len(vin)-4:]
}
