// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
	"github.com/evhome/bluelink-gateway/internal/models"
)

// BreakerClient wraps a Client with circuit breaker protection.
// Prevents cascading failures when the vehicle cloud is unavailable.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var _ Client = (*BreakerClient)(nil)

// NewBreakerClient creates a vehicle-cloud client with circuit breaker
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(client Client) *BreakerClient {
	cbName := "upstream"

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,               // Allow 3 concurrent requests in half-open state
		Interval:    time.Minute,     // Reset counts after 1 minute in closed state
		Timeout:     2 * time.Minute, // Wait 2 minutes before transitioning from open to half-open

		// ReadyToTrip determines when to open the circuit
		// Opens when failure rate >= 60% with minimum 10 requests
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		// IsSuccessful decides which errors count against the circuit.
		// Rejections from a healthy cloud (bad credentials, throttling,
		// empty data) must not open it; only transport-level failures
		// and unclassified errors indicate unavailability.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, ErrAuthenticationFailed) ||
				errors.Is(err, ErrRateLimited) ||
				errors.Is(err, ErrNoData)
		},

		// OnStateChange is called whenever the circuit breaker changes state
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			// Update metrics
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			// Reset consecutive failures when transitioning to closed
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// State returns the current breaker state ("closed", "half-open", "open")
// for health reporting.
func (bc *BreakerClient) State() string {
	return stateToString(bc.cb.State())
}

// execute wraps a vehicle-cloud call with circuit breaker protection
// Returns the result or an error if circuit is open or request fails
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	// Update metrics based on result
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Circuit is open or too many concurrent requests in half-open state
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: circuit open: %v", ErrTransient, err)
		}

		// Request failed
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()

		// Increment consecutive failures
		counts := bc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(float64(counts.ConsecutiveFailures))

		return nil, err
	}

	// Request succeeded
	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(0)

	return result, nil
}

// castResult safely type-casts the circuit breaker result with error checking
// Returns typed result or error if type assertion fails
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Login authenticates the account with circuit breaker protection
func (bc *BreakerClient) Login(ctx context.Context) (*Session, error) {
	return castResult[Session](bc.execute(func() (interface{}, error) {
		return bc.client.Login(ctx)
	}))
}

// CachedStatus retrieves the cloud-cached vehicle state with circuit breaker protection
func (bc *BreakerClient) CachedStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error) {
	return castResult[models.VehicleStatus](bc.execute(func() (interface{}, error) {
		return bc.client.CachedStatus(ctx, sess)
	}))
}

// RefreshStatus forces a vehicle-side status report with circuit breaker protection
func (bc *BreakerClient) RefreshStatus(ctx context.Context, sess *Session) (*models.VehicleStatus, error) {
	return castResult[models.VehicleStatus](bc.execute(func() (interface{}, error) {
		return bc.client.RefreshStatus(ctx, sess)
	}))
}

// Lock locks the vehicle doors with circuit breaker protection
func (bc *BreakerClient) Lock(ctx context.Context, sess *Session) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.Lock(ctx, sess)
	})
	return err
}

// Unlock unlocks the vehicle doors with circuit breaker protection
func (bc *BreakerClient) Unlock(ctx context.Context, sess *Session) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.Unlock(ctx, sess)
	})
	return err
}

// StartClimate starts climate control with circuit breaker protection
func (bc *BreakerClient) StartClimate(ctx context.Context, sess *Session, spec models.ClimateSpec) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.StartClimate(ctx, sess, spec)
	})
	return err
}

// StopClimate stops climate control with circuit breaker protection
func (bc *BreakerClient) StopClimate(ctx context.Context, sess *Session) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.StopClimate(ctx, sess)
	})
	return err
}

// StartCharge starts EV charging with circuit breaker protection
func (bc *BreakerClient) StartCharge(ctx context.Context, sess *Session) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.StartCharge(ctx, sess)
	})
	return err
}

// StopCharge stops EV charging with circuit breaker protection
func (bc *BreakerClient) StopCharge(ctx context.Context, sess *Session) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.StopCharge(ctx, sess)
	})
	return err
}

// Odometer reads the odometer with circuit breaker protection
func (bc *BreakerClient) Odometer(ctx context.Context, sess *Session) (float64, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Odometer(ctx, sess)
	})
	if err != nil {
		return 0, err
	}
	km, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return km, nil
}

// Location reads the vehicle position with circuit breaker protection
func (bc *BreakerClient) Location(ctx context.Context, sess *Session) (*models.Location, error) {
	return castResult[models.Location](bc.execute(func() (interface{}, error) {
		return bc.client.Location(ctx, sess)
	}))
}
