// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package events

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/evhome/bluelink-gateway/internal/alerts"
	"github.com/evhome/bluelink-gateway/internal/config"
)

// fakeChannel records deliveries and returns a canned result.
type fakeChannel struct {
	mu          sync.Mutex
	sent        []*alerts.Event
	hadDeadline bool
	result      *alerts.DeliveryResult
}

func (c *fakeChannel) Name() string    { return "fake" }
func (c *fakeChannel) Validate() error { return nil }

func (c *fakeChannel) Send(ctx context.Context, event *alerts.Event) *alerts.DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, event)
	_, c.hadDeadline = ctx.Deadline()
	return c.result
}

func (c *fakeChannel) deliveries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestDispatcher(result *alerts.DeliveryResult) (*Dispatcher, *fakeChannel) {
	ch := &fakeChannel{result: result}
	d := &Dispatcher{
		channel:         ch,
		subject:         "alerts.events",
		dispatchTimeout: time.Second,
	}
	return d, ch
}

func alertMessage(t *testing.T, event *alerts.Event) *message.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage(event.ID, data)
}

func TestDispatcher_HandleDeliversEvent(t *testing.T) {
	now := time.Now().UTC()
	d, ch := newTestDispatcher(&alerts.DeliveryResult{Success: true, DeliveredAt: &now})

	event := alerts.NewEvent("auth_failure", "lock", "login rejected")
	if err := d.handle(alertMessage(t, event)); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	if ch.deliveries() != 1 {
		t.Fatalf("expected 1 delivery, got %d", ch.deliveries())
	}
	got := ch.sent[0]
	if got.ID != event.ID || got.Classification != "auth_failure" || got.Operation != "lock" {
		t.Fatalf("delivered event does not match published event: %+v", got)
	}
	if !ch.hadDeadline {
		t.Fatal("delivery context should carry the dispatch timeout")
	}
}

func TestDispatcher_HandleTransientFailureReturnsError(t *testing.T) {
	d, ch := newTestDispatcher(&alerts.DeliveryResult{
		Success:      false,
		IsTransient:  true,
		ErrorCode:    alerts.ErrorCodeServerError,
		ErrorMessage: "upstream webhook down",
	})

	err := d.handle(alertMessage(t, alerts.NewEvent("transient_network", "status.refresh", "boom")))
	if err == nil {
		t.Fatal("transient failure should return an error so the message is retried")
	}
	if !strings.Contains(err.Error(), alerts.ErrorCodeServerError) {
		t.Fatalf("error should carry the delivery error code, got %q", err)
	}
	if ch.deliveries() != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", ch.deliveries())
	}
}

func TestDispatcher_HandlePermanentFailureAcks(t *testing.T) {
	d, ch := newTestDispatcher(&alerts.DeliveryResult{
		Success:      false,
		IsTransient:  false,
		ErrorCode:    alerts.ErrorCodeAuthFailed,
		ErrorMessage: "webhook token revoked",
	})

	err := d.handle(alertMessage(t, alerts.NewEvent("auth_failure", "unlock", "boom")))
	if err != nil {
		t.Fatalf("permanent failure must ack, not retry: %v", err)
	}
	if ch.deliveries() != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", ch.deliveries())
	}
}

func TestDispatcher_HandleMalformedPayloadAcks(t *testing.T) {
	d, ch := newTestDispatcher(&alerts.DeliveryResult{Success: true})

	msg := message.NewMessage("poison", []byte("{not json"))
	if err := d.handle(msg); err != nil {
		t.Fatalf("malformed payload must ack, not retry: %v", err)
	}
	if ch.deliveries() != 0 {
		t.Fatalf("malformed payload must not reach the channel, got %d deliveries", ch.deliveries())
	}
}

func TestNewDispatcher_RequiresChannel(t *testing.T) {
	cfg := config.EventsConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    4222,
		Stream:  "BLUELINK_ALERTS",
		Subject: "alerts.events",
	}
	if _, err := NewDispatcher(cfg, config.AlertsConfig{}, nil, nil); err == nil {
		t.Fatal("expected error for nil delivery channel")
	}
}
