// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/evhome/bluelink-gateway/internal/config"
)

const (
	// alertMaxAge drops undelivered alerts that have aged out of
	// usefulness. A day-old alert about a transient failure is noise.
	alertMaxAge = 24 * time.Hour

	// alertDuplicateWindow is the JetStream dedup window keyed on the
	// event ID, protecting against publisher retries enqueueing twice.
	alertDuplicateWindow = 2 * time.Minute
)

// JetStreamContext is the subset of jetstream.JetStream used by
// StreamInitializer. The interface allows testing with mock
// implementations.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer ensures the alert stream exists with the correct
// configuration before the publisher and dispatcher start. Initialization
// is idempotent: the stream is created on first run and its configuration
// updated on subsequent runs.
type StreamInitializer struct {
	js  JetStreamContext
	cfg config.EventsConfig
}

// NewStreamInitializer creates a stream initializer for the alert stream.
func NewStreamInitializer(js JetStreamContext, cfg config.EventsConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	return &StreamInitializer{js: js, cfg: cfg}, nil
}

// StreamConfig returns the desired JetStream configuration for the alert
// stream: a work queue over the alert subject, file-backed for durability
// across restarts, with acked alerts removed immediately.
func (s *StreamInitializer) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       s.cfg.Stream,
		Subjects:   []string{s.cfg.Subject},
		Retention:  jetstream.WorkQueuePolicy,
		MaxAge:     alertMaxAge,
		Duplicates: alertDuplicateWindow,
		Replicas:   1,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates or updates the alert stream. Safe to call on every
// startup.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := s.StreamConfig()

	_, err := s.js.Stream(ctx, s.cfg.Stream)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.cfg.Stream, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.cfg.Stream, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.cfg.Stream, err)
}
