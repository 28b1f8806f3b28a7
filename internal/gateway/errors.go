// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/evhome/bluelink-gateway/internal/upstream"
)

// Classification is the stable failure category echoed to callers and
// used by the alert escalation policy.
type Classification string

const (
	ClassificationAuth          Classification = "authentication_failed"
	ClassificationCooldown      Classification = "cooldown_active"
	ClassificationRateLimited   Classification = "upstream_rate_limited"
	ClassificationTransient     Classification = "transient_network"
	ClassificationNoData        Classification = "no_data"
	ClassificationUnknown       Classification = "unknown_upstream"
	ClassificationResultUnknown Classification = "result_unknown"
)

// ErrCacheEmpty is returned by StatusCache when no vehicle status has ever
// been retrieved. Callers fall through to a forced refresh.
var ErrCacheEmpty = errors.New("no vehicle status retrieved yet")

// CooldownActiveError rejects an operation whose class window has not
// elapsed. It is returned immediately, never queued: the upstream API
// would reject the call anyway and degrade the account's standing.
type CooldownActiveError struct {
	Class     CooldownClass
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("%s cooldown active, retry in %s", e.Class, e.Remaining.Round(time.Second))
}

// ResultUnknownError tells a waiter that abandoned an in-flight operation
// that the outcome is undetermined. The upstream call was (or may have
// been) dispatched and cannot be cancelled; the vehicle action may still
// complete after this error is returned.
type ResultUnknownError struct {
	Operation string
	Cause     error
}

func (e *ResultUnknownError) Error() string {
	return fmt.Sprintf("result of %s unknown: caller gave up while the call was in flight (%v)", e.Operation, e.Cause)
}

func (e *ResultUnknownError) Unwrap() error {
	return e.Cause
}

// Classify maps any gateway or upstream error to its classification.
func Classify(err error) Classification {
	var cooldown *CooldownActiveError
	var unknown *ResultUnknownError

	switch {
	case errors.As(err, &cooldown):
		return ClassificationCooldown
	case errors.As(err, &unknown):
		return ClassificationResultUnknown
	case errors.Is(err, upstream.ErrAuthenticationFailed):
		return ClassificationAuth
	case errors.Is(err, upstream.ErrRateLimited):
		return ClassificationRateLimited
	case errors.Is(err, upstream.ErrTransient):
		return ClassificationTransient
	case errors.Is(err, ErrCacheEmpty), errors.Is(err, upstream.ErrNoData):
		return ClassificationNoData
	default:
		return ClassificationUnknown
	}
}
