// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package services

import (
	"context"
	"errors"
	"fmt"
)

// AlertDispatcher matches the lifecycle of events.Dispatcher: Run consumes
// the alert stream until the context is canceled, Close releases the
// subscriber and router.
type AlertDispatcher interface {
	Run(ctx context.Context) error
	Close() error
}

// AlertDispatcherFactory builds a fresh dispatcher. A watermill router
// cannot be re-run once closed, so the service constructs a new dispatcher
// on every (re)start instead of wrapping a single instance.
type AlertDispatcherFactory func() (AlertDispatcher, error)

// AlertDispatcherService supervises the durable alert dispatcher. Each
// Serve builds a dispatcher from the factory, runs it, and closes it on
// the way out; a crash therefore restarts with a clean subscriber whose
// durable consumer resumes from the stream's pending messages.
type AlertDispatcherService struct {
	factory AlertDispatcherFactory
	name    string
}

// NewAlertDispatcherService creates a new alert dispatcher service wrapper.
//
// Example usage:
//
//	svc := services.NewAlertDispatcherService(func() (services.AlertDispatcher, error) {
//	    return events.NewDispatcher(cfg.Events, cfg.Alerts, channel, wmLogger)
//	})
//	tree.AddEventsService(svc)
func NewAlertDispatcherService(factory AlertDispatcherFactory) *AlertDispatcherService {
	return &AlertDispatcherService{
		factory: factory,
		name:    "alert-dispatcher",
	}
}

// Serve implements suture.Service.
func (s *AlertDispatcherService) Serve(ctx context.Context) error {
	d, err := s.factory()
	if err != nil {
		return fmt.Errorf("build alert dispatcher: %w", err)
	}

	runErr := d.Run(ctx)
	closeErr := d.Close()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("alert dispatcher failed: %w", runErr)
	}
	if runErr == nil && closeErr != nil {
		return fmt.Errorf("alert dispatcher close failed: %w", closeErr)
	}
	return runErr
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *AlertDispatcherService) String() string {
	return s.name
}
