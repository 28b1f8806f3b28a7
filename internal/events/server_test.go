// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package events

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
)

// startEventsServer boots an embedded broker on a random port with JetStream
// storage under a per-test temp dir. The returned config carries the bound
// port so clients and publishers can dial it.
func startEventsServer(t *testing.T) (*EmbeddedServer, config.EventsConfig) {
	t.Helper()

	cfg := config.EventsConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     -1, // random port, parallel test runs must not collide
		StoreDir: t.TempDir(),
		Stream:   "ALERTS_TEST",
		Subject:  "alerts.test",
	}

	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	u, err := url.Parse(srv.ClientURL())
	if err != nil {
		t.Fatalf("parse client URL %q: %v", srv.ClientURL(), err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse client port %q: %v", u.Port(), err)
	}
	cfg.Port = port

	return srv, cfg
}

func TestEmbeddedServer_StartAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded broker test in short mode")
	}

	srv, cfg := startEventsServer(t)

	if !srv.IsRunning() {
		t.Error("IsRunning() = false after successful start")
	}
	if srv.ClientURL() == "" {
		t.Error("ClientURL() is empty")
	}
	if cfg.Port <= 0 {
		t.Errorf("bound port = %d, want > 0", cfg.Port)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestEmbeddedServer_ShutdownHonorsCanceledContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded broker test in short mode")
	}

	srv, _ := startEventsServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() error = %v, want context.Canceled", err)
	}
}

func TestPublisher_PublishAlertRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded broker test in short mode")
	}

	_, cfg := startEventsServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := natsgo.Connect(cfg.URL())
	if err != nil {
		t.Fatalf("Connect(%q) error = %v", cfg.URL(), err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream.New() error = %v", err)
	}

	init, err := NewStreamInitializer(js, cfg)
	if err != nil {
		t.Fatalf("NewStreamInitializer() error = %v", err)
	}
	stream, err := init.EnsureStream(ctx)
	if err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}

	pub, err := NewPublisher(cfg, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer pub.Close()

	event := alerts.NewEvent("auth_failure", "lock", "login rejected")
	if err := pub.PublishAlert(ctx, event); err != nil {
		t.Fatalf("PublishAlert() error = %v", err)
	}

	// A retried publish of the same event lands inside the dedup window
	// and must be absorbed by the broker, not enqueued twice.
	if err := pub.PublishAlert(ctx, event); err != nil {
		t.Fatalf("PublishAlert() duplicate error = %v", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		t.Fatalf("stream Info() error = %v", err)
	}
	if info.State.Msgs != 1 {
		t.Fatalf("stream messages = %d, want 1 after duplicate publish", info.State.Msgs)
	}

	raw, err := stream.GetMsg(ctx, info.State.FirstSeq)
	if err != nil {
		t.Fatalf("GetMsg(%d) error = %v", info.State.FirstSeq, err)
	}

	var got alerts.Event
	if err := json.Unmarshal(raw.Data, &got); err != nil {
		t.Fatalf("unmarshal stored event: %v", err)
	}
	if got.ID != event.ID || got.Classification != "auth_failure" || got.Operation != "lock" {
		t.Fatalf("stored event does not match published event: %+v", got)
	}
	if id := raw.Header.Get(natsgo.MsgIdHdr); id != event.ID {
		t.Errorf("stored %s header = %q, want %q", natsgo.MsgIdHdr, id, event.ID)
	}
}

func TestPublisher_CloseRejectsPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded broker test in short mode")
	}

	_, cfg := startEventsServer(t)

	pub, err := NewPublisher(cfg, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Idempotent close.
	if err := pub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	event := alerts.NewEvent("auth_failure", "unlock", "session expired")
	if err := pub.PublishAlert(context.Background(), event); err == nil {
		t.Fatal("PublishAlert() after Close() should fail")
	}
}
