// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/events"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/supervisor/services"
)

// EventsComponents holds the durable alert pipeline for lifecycle management:
// the embedded NATS server, the provisioning connection, and the publisher
// the alert notifier dispatches through.
//
// The dispatcher is deliberately absent. It runs under the supervisor tree
// and is rebuilt per (re)start via DispatcherFactory, because a closed
// Watermill router cannot be run again.
type EventsComponents struct {
	server    *events.EmbeddedServer
	natsConn  *natsgo.Conn
	publisher *events.Publisher

	eventsCfg config.EventsConfig
	alertsCfg config.AlertsConfig

	mu     sync.Mutex
	closed bool
}

// InitEvents initializes the durable alert pipeline when
// GATEWAY_EVENTS_ENABLED=true. It returns (nil, nil) when the pipeline is
// disabled; callers treat a nil *EventsComponents as "direct dispatch".
func InitEvents(cfg *config.Config) (*EventsComponents, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("Durable alert pipeline disabled (GATEWAY_EVENTS_ENABLED=false)")
		return nil, nil
	}

	logging.Info().Msg("Initializing durable alert pipeline...")

	components := &EventsComponents{
		eventsCfg: cfg.Events,
		alertsCfg: cfg.Alerts,
	}

	// Step 1: Start the embedded NATS server. The constructor blocks until
	// the server accepts connections.
	server, err := events.NewEmbeddedServer(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("start embedded NATS server: %w", err)
	}
	components.server = server
	logging.Info().Str("url", server.ClientURL()).Msg("Embedded NATS server started")

	// Step 2: Connect for stream provisioning. The publisher and dispatcher
	// open their own connections through Watermill.
	nc, err := natsgo.Connect(server.ClientURL(),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.natsConn = nc

	// Step 3: Ensure the alert stream exists before anything publishes to it.
	js, err := jetstream.New(nc)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	initializer, err := events.NewStreamInitializer(js, cfg.Events)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}

	stream, err := initializer.EnsureStream(context.Background())
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("ensure alert stream exists: %w", err)
	}
	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Msg("JetStream alert stream ready")

	// Step 4: Create the publisher the notifier enqueues alerts through.
	publisher, err := events.NewPublisher(cfg.Events, nil)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create alert publisher: %w", err)
	}
	components.publisher = publisher
	logging.Info().Msg("Alert publisher created")

	return components, nil
}

// Dispatch returns the notifier dispatch function backed by the stream.
func (c *EventsComponents) Dispatch() alerts.DispatchFunc {
	if c == nil {
		return nil
	}
	return c.publisher.Dispatch()
}

// DispatcherFactory returns the factory the supervisor uses to build the
// stream consumer, fresh on every service (re)start.
func (c *EventsComponents) DispatcherFactory(ch alerts.Channel) services.AlertDispatcherFactory {
	return func() (services.AlertDispatcher, error) {
		return events.NewDispatcher(c.eventsCfg, c.alertsCfg, ch, nil)
	}
}

// Shutdown stops the pipeline: publisher first, then the provisioning
// connection, then the embedded server. Runs after the supervisor tree has
// exited, so the dispatcher service has already closed its consumer.
func (c *EventsComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert publisher")
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded NATS server")
		}
		logging.Info().Msg("Embedded NATS server stopped")
	}
}
