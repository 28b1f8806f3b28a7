// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockDispatcher is a test double for the AlertDispatcher interface.
type mockDispatcher struct {
	runErr     error
	closeErr   error
	runCount   atomic.Int32
	closeCount atomic.Int32
}

func (m *mockDispatcher) Run(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockDispatcher) Close() error {
	m.closeCount.Add(1)
	return m.closeErr
}

func TestAlertDispatcherService_Interface(t *testing.T) {
	var _ suture.Service = (*AlertDispatcherService)(nil)
}

func TestAlertDispatcherService_Serve(t *testing.T) {
	t.Run("builds, runs, and closes on shutdown", func(t *testing.T) {
		d := &mockDispatcher{}
		var built atomic.Int32
		svc := NewAlertDispatcherService(func() (AlertDispatcher, error) {
			built.Add(1)
			return d, nil
		})

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after cancellation")
		}

		if built.Load() != 1 {
			t.Errorf("expected 1 factory call, got %d", built.Load())
		}
		if d.closeCount.Load() != 1 {
			t.Errorf("expected Close after Run, got %d calls", d.closeCount.Load())
		}
	})

	t.Run("factory failure is a crash", func(t *testing.T) {
		buildErr := errors.New("stream missing")
		svc := NewAlertDispatcherService(func() (AlertDispatcher, error) {
			return nil, buildErr
		})

		err := svc.Serve(context.Background())
		if !errors.Is(err, buildErr) {
			t.Errorf("expected build error, got %v", err)
		}
	})

	t.Run("each restart builds a fresh dispatcher", func(t *testing.T) {
		var built atomic.Int32
		svc := NewAlertDispatcherService(func() (AlertDispatcher, error) {
			built.Add(1)
			return &mockDispatcher{runErr: errors.New("subscriber lost")}, nil
		})

		sup := suture.New("dispatcher-test", suture.Spec{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			Timeout:          time.Second,
		})
		sup.Add(svc)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		go sup.Serve(ctx)
		time.Sleep(150 * time.Millisecond)

		if built.Load() < 2 {
			t.Errorf("expected a fresh dispatcher per restart, got %d builds", built.Load())
		}
	})

	t.Run("close failure after clean run is a crash", func(t *testing.T) {
		closeErr := errors.New("router close timeout")
		d := &mockDispatcher{closeErr: closeErr}
		svc := NewAlertDispatcherService(func() (AlertDispatcher, error) {
			return d, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		// The canceled run takes precedence over the close error.
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return")
		}
	})
}

func TestAlertDispatcherService_String(t *testing.T) {
	svc := NewAlertDispatcherService(func() (AlertDispatcher, error) { return &mockDispatcher{}, nil })
	if svc.String() != "alert-dispatcher" {
		t.Errorf("expected 'alert-dispatcher', got %q", svc.String())
	}
}
