// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package main is the entry point for the Bluelink Gateway server.
//
// The gateway puts a local HTTP facade in front of a rate-limited
// vehicle-cloud API: status reads served from cache, explicit refresh
// endpoints, and vehicle commands (lock, climate, charging), with cooldown
// enforcement and single-flight coordination protecting the account from
// upstream throttling and lockout.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional config file (Koanf v2)
//  2. Upstream client: vehicle-cloud HTTP client wrapped in a circuit breaker
//  3. Snapshot store: BadgerDB persistence seeding the status cache across restarts
//  4. Gateway core: session manager, status cache, cooldown tracker, request coordinator
//  5. Alerting: direct webhook dispatch, or durable JetStream dispatch when events are enabled
//  6. HTTP server: Chi router serving the REST facade
//  7. Supervisor tree: events, background, and API layers under suture
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//   - Environment variables (BLUELINK_* account, GATEWAY_* behavior)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Required settings:
//   - BLUELINK_USERNAME: vehicle-cloud account email
//   - BLUELINK_PASSWORD: vehicle-cloud account password
//
// Commonly tuned:
//   - BLUELINK_REGION (1=Europe), BLUELINK_BRAND (2=Hyundai), BLUELINK_VIN
//   - GATEWAY_REFRESH_COOLDOWN: minimum spacing between forced refreshes (60s)
//   - GATEWAY_COMMAND_COOLDOWN: minimum spacing between vehicle commands (90s)
//   - GATEWAY_STALENESS_THRESHOLD: cache age that triggers a background poll (10m)
//
// # Durable Alerting
//
// With GATEWAY_ALERTS_ENABLED=true, repeated upstream failures are delivered
// to GATEWAY_ALERT_WEBHOOK_URL. Setting GATEWAY_EVENTS_ENABLED=true routes
// delivery through an embedded NATS JetStream work queue, so alerts raised
// while the webhook endpoint is down survive gateway restarts.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (GATEWAY_SHUTDOWN_TIMEOUT)
//   - Stops the background refresh worker and alert dispatcher
//   - Drains the alert pipeline and closes the snapshot store
//
// # Example Usage
//
// Minimal (cached status facade for one vehicle):
//
//	export BLUELINK_USERNAME=driver@example.com
//	export BLUELINK_PASSWORD=secret
//	export BLUELINK_PIN=1234
//	./bluelink-gateway
//
// With durable webhook alerting:
//
//	export BLUELINK_USERNAME=driver@example.com
//	export BLUELINK_PASSWORD=secret
//	export BLUELINK_PIN=1234
//	export GATEWAY_ALERTS_ENABLED=true
//	export GATEWAY_ALERT_WEBHOOK_URL=https://hooks.example.com/vehicle
//	export GATEWAY_EVENTS_ENABLED=true
//	./bluelink-gateway
//
// Docker:
//
//	docker run -d \
//	  -e BLUELINK_USERNAME=driver@example.com \
//	  -e BLUELINK_PASSWORD=secret \
//	  -e BLUELINK_PIN=1234 \
//	  -p 8080:8080 \
//	  ghcr.io/evhome/bluelink-gateway
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/api"
	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/gateway"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/snapshot"
	"github.com/evhome/bluelink-gateway/internal/supervisor"
	"github.com/evhome/bluelink-gateway/internal/supervisor/services"
	"github.com/evhome/bluelink-gateway/internal/upstream"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Bluelink Gateway with supervisor tree")
	logging.Info().
		Str("region", cfg.Upstream.RegionName()).
		Str("brand", cfg.Upstream.BrandName()).
		Str("base_url", cfg.Upstream.ResolveBaseURL()).
		Msg("Configuration loaded")

	// Upstream vehicle-cloud client, wrapped in a circuit breaker so a
	// misbehaving cloud cannot soak up the account's rate budget.
	client := upstream.NewBreakerClient(upstream.NewHTTPClient(cfg.Upstream))

	cache := gateway.NewStatusCache()

	// Snapshot store is best-effort: a broken store disables persistence
	// but never blocks startup.
	var snapshots gateway.SnapshotStore
	if cfg.Cache.SnapshotEnabled {
		store, err := snapshot.Open(cfg.Cache.SnapshotDir)
		if err != nil {
			logging.Warn().Err(err).Str("dir", cfg.Cache.SnapshotDir).
				Msg("Snapshot store unavailable, continuing without persistence")
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing snapshot store")
				}
			}()
			seedCache(cache, store)
			snapshots = store
		}
	}

	sessions := gateway.NewSessionManager(client, cfg.Upstream.SessionExpiryMargin)
	cooldowns := gateway.NewCooldownTracker(cfg.Cooldown)
	// Work budget for one detached upstream call chain: a login, the
	// operation itself, and the single re-login retry.
	coordinator := gateway.NewRequestCoordinator(4 * cfg.Upstream.Timeout)

	// Alert dispatch: durable JetStream pipeline when events are enabled,
	// direct webhook otherwise, nil (disabled) when alerting is off.
	var (
		dispatch       alerts.DispatchFunc
		webhookChannel *alerts.WebhookChannel
		pipeline       *EventsComponents
	)
	if cfg.Alerts.Enabled {
		webhookChannel = alerts.NewWebhookChannel(cfg.Alerts.WebhookURL)

		pipeline, err = InitEvents(cfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize durable alert pipeline")
		}
		if pipeline != nil {
			defer pipeline.Shutdown(context.Background())
			dispatch = pipeline.Dispatch()
			logging.Info().Msg("Alert dispatch routed through JetStream work queue")
		} else {
			dispatch = alerts.ChannelDispatch(webhookChannel)
			logging.Info().Str("channel", webhookChannel.Name()).Msg("Alert dispatch direct to webhook")
		}
	} else if cfg.Events.Enabled {
		logging.Warn().Msg("GATEWAY_EVENTS_ENABLED=true has no effect while alerting is disabled")
	}
	notifier := gateway.NewAlertNotifier(cfg.Alerts, dispatch)

	gw := gateway.New(cfg, gateway.Deps{
		Client:      client,
		Sessions:    sessions,
		Cache:       cache,
		Cooldowns:   cooldowns,
		Coordinator: coordinator,
		Notifier:    notifier,
		Snapshots:   snapshots,
	})

	handler := api.NewHandler(gw, version)
	router := api.NewRouter(cfg.Server, handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	if pipeline != nil {
		tree.AddEventsService(services.NewAlertDispatcherService(pipeline.DispatcherFactory(webhookChannel)))
		logging.Info().Msg("Alert dispatcher added to supervisor tree")
	}

	tree.AddBackgroundService(services.NewRefreshWorkerService(gateway.NewRefreshWorker(gw)))
	logging.Info().Msg("Background refresh worker added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added to supervisor tree")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// seedCache warms the status cache from the last persisted snapshot so a
// restart serves stale-but-real data instead of an empty-cache error.
func seedCache(cache *gateway.StatusCache, store *snapshot.Store) {
	st, err := store.Load()
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			logging.Debug().Msg("No status snapshot to seed from")
		} else {
			logging.Warn().Err(err).Msg("Failed to load status snapshot")
		}
		return
	}
	if cache.RecordFresh(st) {
		logging.Info().Time("retrieved_at", st.RetrievedAt).Msg("Status cache seeded from snapshot")
	}
}
