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

// Runner matches the lifecycle of the gateway's background refresh worker:
// a single blocking loop that exits with ctx.Err() on shutdown.
//
// Satisfied by *gateway.RefreshWorker.
type Runner interface {
	Run(ctx context.Context) error
}

// RefreshWorkerService wraps the background status refresh worker as a
// supervised service. The worker itself is restartable - it only drains a
// channel owned by the gateway - so a crash loses at most the poll that
// was in flight, and the pending trigger stays queued for the restart.
type RefreshWorkerService struct {
	worker Runner
	name   string
}

// NewRefreshWorkerService creates a new refresh worker service wrapper.
//
// Example usage:
//
//	worker := gateway.NewRefreshWorker(gw)
//	svc := services.NewRefreshWorkerService(worker)
//	tree.AddBackgroundService(svc)
func NewRefreshWorkerService(worker Runner) *RefreshWorkerService {
	return &RefreshWorkerService{
		worker: worker,
		name:   "refresh-worker",
	}
}

// Serve implements suture.Service. Run blocks until the context is
// canceled; any other return is a crash and suture restarts the worker
// per its backoff policy.
func (s *RefreshWorkerService) Serve(ctx context.Context) error {
	err := s.worker.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("refresh worker failed: %w", err)
	}
	return err
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *RefreshWorkerService) String() string {
	return s.name
}
