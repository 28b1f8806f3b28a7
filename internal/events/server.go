// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package events provides the optional durable alert pipeline: an embedded
// NATS JetStream broker, a publisher that enqueues alert events, and a
// dispatcher that drains the queue through a delivery channel with retries.
// When the pipeline is disabled the notifier dispatches alerts directly and
// none of this package is wired.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/evhome/bluelink-gateway/internal/config"
)

// EmbeddedServer wraps the NATS server with lifecycle management.
// The embedded broker gives the alert pipeline a self-contained JetStream
// instance so single-host deployments need no external infrastructure.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server.
// The server is configured for JetStream with file storage under
// cfg.StoreDir. Returns an error if the server fails to start within
// 30 seconds.
func NewEmbeddedServer(cfg config.EventsConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "bluelink-events",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		// Listen on TCP so operators can attach the NATS CLI to inspect
		// the alert stream.
		DontListen: false,
		Debug:      false,
		Trace:      false,
		NoLog:      false,
		// Alert events are small JSON payloads.
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown gracefully stops the server.
// Waits for in-flight messages to complete or context cancellation.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning returns server health status.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
