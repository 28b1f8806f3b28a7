// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package upstream implements the vehicle-cloud client boundary.
//
// The Client interface covers the eleven operations the gateway needs:
// account login, the two status reads (cloud-cached and forced refresh),
// the six vehicle commands, and the odometer and location reads. HTTPClient
// is the production implementation; BreakerClient decorates any Client with
// circuit breaker protection.
//
// Every failure crossing this boundary is classified into one of the
// sentinel errors in errors.go so the gateway layer can translate it
// without inspecting HTTP details.
package upstream

import (
	"context"
	"time"

	"github.com/evhome/bluelink-gateway/internal/models"
)

// Session is the credential state returned by Login. It is a value object;
// ownership and renewal live in the gateway's session manager.
type Session struct {
	AccessToken string
	VIN         string // Vehicle selected at login (configured VIN or first on the account)
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Usable reports whether the session can still be presented upstream,
// renewing margin ahead of the actual deadline.
func (s *Session) Usable(now time.Time, margin time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return now.Before(s.ExpiresAt.Add(-margin))
}

// Client is the vehicle-cloud API surface.
//
// CachedStatus returns the cloud's last known vehicle state without waking
// the vehicle. RefreshStatus forces the vehicle to report over the cellular
// link; it is slow (tens of seconds) and drains the 12V battery, which is
// why the gateway meters it. Commands always wake the vehicle.
//
// All methods are safe for concurrent use.
type Client interface {
	Login(ctx context.Context) (*Session, error)

	CachedStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error)
	RefreshStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error)

	Lock(ctx context.Context, sess *Session) error
	Unlock(ctx context.Context, sess *Session) error
	StartClimate(ctx context.Context, sess *Session, spec models.ClimateSpec) error
	StopClimate(ctx context.Context, sess *Session) error
	StartCharge(ctx context.Context, sess *Session) error
	StopCharge(ctx context.Context, sess *Session) error

	Odometer(ctx context.Context, sess *Session) (float64, error)
	Location(ctx context.Context, sess *Session) (*models.Location, error)
}
