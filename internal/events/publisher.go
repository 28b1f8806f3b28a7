// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

// Publisher enqueues alert events onto the JetStream work queue. Publishing
// is the notifier's dispatch step when the durable pipeline is enabled;
// actual delivery happens in the Dispatcher.
type Publisher struct {
	publisher message.Publisher
	subject   string
	mu        sync.RWMutex
	closed    bool
	logger    watermill.LoggerAdapter
}

// NewPublisher creates a Watermill NATS publisher for the alert subject.
// The stream must already exist; publishing does not auto-provision it.
func NewPublisher(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL(),
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: false,
			// Stream is pre-created by StreamInitializer.
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher: pub,
		subject:   cfg.Subject,
		logger:    logger,
	}, nil
}

// PublishAlert serializes and enqueues one alert event. The event ID
// doubles as the Nats-Msg-Id so publish retries inside the dedup window
// cannot enqueue the same alert twice.
func (p *Publisher) PublishAlert(ctx context.Context, event *alerts.Event) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize alert event: %w", err)
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("classification", event.Classification)
	msg.Metadata.Set("operation", event.Operation)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.ID)

	if err := p.publisher.Publish(p.subject, msg); err != nil {
		return err
	}
	metrics.EventsPublishedTotal.Inc()
	return nil
}

// Dispatch adapts the publisher into the notifier's dispatch function.
func (p *Publisher) Dispatch() alerts.DispatchFunc {
	return func(ctx context.Context, event *alerts.Event) error {
		return p.PublishAlert(ctx, event)
	}
}

// Close shuts down the publisher and its NATS connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
