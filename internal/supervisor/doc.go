// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

/*
Package supervisor provides process supervision for the gateway using suture v4.

This package implements a hierarchical supervisor tree that manages the lifecycle
of all long-running services in the application. It provides Erlang/OTP-style
supervision with automatic restart, failure isolation, and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("bluelink-gateway")
	├── EventsSupervisor ("events-layer")
	│   └── AlertDispatcherService (if events.enabled)
	├── BackgroundSupervisor ("background-layer")
	│   └── RefreshWorkerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crash in the refresh worker doesn't affect HTTP serving
  - A wedged alert dispatcher never blocks vehicle commands
  - Each layer can restart independently

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/evhome/bluelink-gateway/internal/logging"
	    "github.com/evhome/bluelink-gateway/internal/supervisor"
	    "github.com/evhome/bluelink-gateway/internal/supervisor/services"
	)

	func main() {
	    tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	    if err != nil {
	        log.Fatal(err)
	    }

	    tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	    tree.AddBackgroundService(services.NewRefreshWorkerService(worker))

	    // Start the tree (blocks until context canceled)
	    if err := tree.Serve(ctx); err != nil {
	        log.Printf("Supervisor stopped: %v", err)
	    }
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# What Is NOT Supervised

The embedded NATS broker is intentionally not supervised: its constructor
starts it, and a restart would need the publisher and dispatcher connections
rebuilt against the new listener. main owns it directly and shuts it down
after the tree exits, so queued alerts drain first.

The Badger snapshot store is an embedded library, not a long-running
service; the gateway closes it on the way out.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
