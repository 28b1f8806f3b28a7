// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/metrics"
)

const (
	// durableName tracks consumer progress across restarts so alerts
	// queued while the gateway was down are delivered on startup.
	durableName = "alert-dispatcher"

	// maxDeliver bounds JetStream redeliveries after a nack or crash.
	// A message that exhausts redeliveries stays in the stream until
	// the stream MaxAge expires it.
	maxDeliver = 5

	// ackWait must cover the in-process retry schedule below plus one
	// delivery attempt per try, or JetStream redelivers mid-retry:
	// 4 attempts x dispatch timeout + 1s + 2s + 4s backoff.
	ackWait = 60 * time.Second

	retryMaxRetries      = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMultiplier      = 2.0

	routerCloseTimeout = 30 * time.Second
)

// Dispatcher drains the alert stream and delivers each event through a
// channel. Transient delivery failures are retried with exponential
// backoff, then nacked for JetStream redelivery; permanent failures are
// acked and dropped so one bad event cannot wedge the queue.
type Dispatcher struct {
	router          *message.Router
	subscriber      message.Subscriber
	channel         alerts.Channel
	subject         string
	dispatchTimeout time.Duration
}

// NewDispatcher builds the subscriber and router for the alert stream.
// The stream must already exist. Run starts consumption.
func NewDispatcher(cfg config.EventsConfig, alertsCfg config.AlertsConfig, ch alerts.Channel, logger watermill.LoggerAdapter) (*Dispatcher, error) {
	if ch == nil {
		return nil, fmt.Errorf("delivery channel required")
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	dispatchTimeout := alertsCfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Dispatcher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Dispatcher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(64),
		natsgo.AckWait(ackWait),
		// Deliver everything still in the work queue, not just new
		// messages: alerts enqueued during downtime matter most.
		natsgo.DeliverAll(),
		natsgo.BindStream(cfg.Stream),
	}

	subCfg := wmNats.SubscriberConfig{
		URL:              cfg.URL(),
		QueueGroupPrefix: "alert-dispatch",
		// Single consumer keeps delivery ordered and the channel
		// uncontended.
		SubscribersCount: 1,
		AckWaitTimeout:   ackWait,
		CloseTimeout:     routerCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			// Synchronous acks: the work queue deletes on ack, so an
			// ack must not be lost in flight.
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    durableName,
		},
	}

	sub, err := wmNats.NewSubscriber(subCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, logger)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	d := &Dispatcher{
		router:          router,
		subscriber:      sub,
		channel:         ch,
		subject:         cfg.Subject,
		dispatchTimeout: dispatchTimeout,
	}

	// No signals plugin: shutdown is owned by the supervisor context,
	// and a signal-closed router would look like a clean exit and be
	// restarted against a dead router.
	router.AddMiddleware(middleware.Recoverer)
	retryMiddleware := middleware.Retry{
		MaxRetries:      retryMaxRetries,
		InitialInterval: retryInitialInterval,
		MaxInterval:     retryMaxInterval,
		Multiplier:      retryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retryMiddleware.Middleware)

	router.AddNoPublisherHandler("alert-delivery", cfg.Subject, sub, d.handle)

	return d, nil
}

// handle delivers one queued alert. Returning an error triggers the retry
// middleware and, once exhausted, a nack; returning nil acks the message.
func (d *Dispatcher) handle(msg *message.Message) error {
	var event alerts.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping malformed alert event")
		metrics.EventDeliveriesTotal.WithLabelValues("poison").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(msg.Context(), d.dispatchTimeout)
	defer cancel()

	result := d.channel.Send(ctx, &event)
	if result.Success {
		metrics.EventDeliveriesTotal.WithLabelValues("success").Inc()
		logging.Info().
			Str("event_id", event.ID).
			Str("classification", event.Classification).
			Str("operation", event.Operation).
			Str("channel", d.channel.Name()).
			Msg("Alert delivered")
		return nil
	}

	if result.IsTransient {
		metrics.EventDeliveriesTotal.WithLabelValues("transient").Inc()
		return fmt.Errorf("deliver alert %s via %s: %s (%s)",
			event.ID, d.channel.Name(), result.ErrorMessage, result.ErrorCode)
	}

	metrics.EventDeliveriesTotal.WithLabelValues("poison").Inc()
	metrics.AlertDispatchFailuresTotal.Inc()
	logging.Warn().
		Str("event_id", event.ID).
		Str("error_code", result.ErrorCode).
		Str("error", result.ErrorMessage).
		Msg("Alert delivery rejected, dropping event")
	return nil
}

// Run consumes the alert stream until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	logging.Info().
		Str("subject", d.subject).
		Str("channel", d.channel.Name()).
		Msg("Alert dispatcher started")

	if err := d.router.Run(ctx); err != nil {
		return err
	}

	logging.Info().Msg("Alert dispatcher stopped")
	return ctx.Err()
}

// Close stops the router and subscriber.
func (d *Dispatcher) Close() error {
	err := d.router.Close()
	if subErr := d.subscriber.Close(); err == nil {
		err = subErr
	}
	return err
}
