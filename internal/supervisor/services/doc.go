// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

/*
Package services provides suture.Service wrappers for gateway components.

This package adapts the application's components to the suture v4
supervision model, translating their lifecycle patterns (ListenAndServe,
blocking Run, build-run-close) into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation into the Serve pattern
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Refresh Worker (RefreshWorkerService):
  - Wraps gateway.RefreshWorker's blocking trigger loop
  - Restart loses at most the poll in flight; pending triggers survive
    in the gateway-owned channel

Alert Dispatcher (AlertDispatcherService):
  - Builds an events.Dispatcher from a factory on every (re)start,
    because a closed watermill router cannot be re-run
  - The durable JetStream consumer resumes from pending messages after
    a restart

# Usage Example

	tree, _ := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	server := &http.Server{Addr: cfg.Server.Addr(), Handler: router.Setup()}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	tree.AddBackgroundService(services.NewRefreshWorkerService(gateway.NewRefreshWorker(gw)))

	if cfg.Events.Enabled {
	    tree.AddEventsService(services.NewAlertDispatcherService(buildDispatcher))
	}

	tree.Serve(ctx)

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# See Also

  - internal/supervisor: Tree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
