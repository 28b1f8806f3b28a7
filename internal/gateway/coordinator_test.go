// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestCoordinator_SingleFlight(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	work := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return "shared-result", nil
	}

	const waiters = 10
	results := make(chan interface{}, waiters)
	errs := make(chan error, waiters)
	run := func() {
		v, err := rc.Execute(context.Background(), "status.refresh", work)
		results <- v
		errs <- err
	}

	go run()
	<-started
	for i := 0; i < waiters-1; i++ {
		go run()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < waiters; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Waiter %d failed: %v", i, err)
		}
		if v := <-results; v != "shared-result" {
			t.Errorf("Expected shared-result, got %v", v)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 work invocation, got %d", got)
	}
}

func TestRequestCoordinator_DistinctKeysRunConcurrently(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	aStarted := make(chan struct{})
	bStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	var aErr, bErr error

	go func() {
		defer wg.Done()
		_, aErr = rc.Execute(context.Background(), "lock", func(ctx context.Context) (interface{}, error) {
			close(aStarted)
			select {
			case <-bStarted:
				return nil, nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("peer key never started")
			}
		})
	}()
	go func() {
		defer wg.Done()
		_, bErr = rc.Execute(context.Background(), "unlock", func(ctx context.Context) (interface{}, error) {
			close(bStarted)
			select {
			case <-aStarted:
				return nil, nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("peer key never started")
			}
		})
	}()
	wg.Wait()

	if aErr != nil || bErr != nil {
		t.Errorf("Expected distinct keys to run concurrently, got %v / %v", aErr, bErr)
	}
}

func TestRequestCoordinator_WaiterTimeout(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	release := make(chan struct{})
	work := func(ctx context.Context) (interface{}, error) {
		<-release
		return 42, nil
	}

	// A patient waiter joins the same flight in the background.
	patientDone := make(chan struct{})
	var patientV interface{}
	var patientErr error
	go func() {
		defer close(patientDone)
		patientV, patientErr = rc.Execute(context.Background(), "odometer", work)
	}()

	// Wait until the flight is registered so the impatient caller joins it.
	deadline := time.Now().Add(2 * time.Second)
	for rc.InFlight() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Flight never registered")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := rc.Execute(ctx, "odometer", work)

	var unknown *ResultUnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected ResultUnknownError, got %v", err)
	}
	if unknown.Operation != "odometer" {
		t.Errorf("Expected operation odometer, got %s", unknown.Operation)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected the cause to unwrap to the context error")
	}

	// The abandoned call still completes for the patient waiter.
	close(release)
	select {
	case <-patientDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Patient waiter never finished")
	}
	if patientErr != nil {
		t.Fatalf("Patient waiter failed: %v", patientErr)
	}
	if patientV != 42 {
		t.Errorf("Expected 42, got %v", patientV)
	}
}

func TestRequestCoordinator_CompletedFlightStartsFresh(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	var calls atomic.Int32
	work := func(ctx context.Context) (interface{}, error) {
		return calls.Add(1), nil
	}

	v1, err := rc.Execute(context.Background(), "location", work)
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	v2, err := rc.Execute(context.Background(), "location", work)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}

	if v1 != int32(1) || v2 != int32(2) {
		t.Errorf("Expected a fresh call after completion, got %v then %v", v1, v2)
	}
}

func TestRequestCoordinator_WorkBudgetBoundsDetachedCall(t *testing.T) {
	rc := NewRequestCoordinator(50 * time.Millisecond)

	_, err := rc.Execute(context.Background(), "status.poll", func(ctx context.Context) (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return nil, errors.New("work context never expired")
		}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the work budget to expire the detached context, got %v", err)
	}
}

func TestRequestCoordinator_ErrorsShared(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	sentinel := errors.New("upstream exploded")
	var once sync.Once

	work := func(ctx context.Context) (interface{}, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, sentinel
	}

	errs := make(chan error, 2)
	go func() { _, err := rc.Execute(context.Background(), "lock", work); errs <- err }()
	<-started
	go func() { _, err := rc.Execute(context.Background(), "lock", work); errs <- err }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; !errors.Is(err, sentinel) {
			t.Errorf("Expected the shared error, got %v", err)
		}
	}
}

func TestRequestCoordinator_InFlight(t *testing.T) {
	rc := NewRequestCoordinator(5 * time.Second)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		rc.Execute(context.Background(), "climate.stop", func(ctx context.Context) (interface{}, error) {
			<-release
			return nil, nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rc.InFlight() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Expected one in-flight operation")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	<-done

	deadline = time.Now().Add(2 * time.Second)
	for rc.InFlight() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the flight table to drain")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMetricOperation(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"status.refresh", "status.refresh"},
		{"climate.start?temp=21.5&defrost=true&climate=true&heating=false", "climate.start"},
		{"lock", "lock"},
	}

	for _, tt := range tests {
		if got := metricOperation(tt.key); got != tt.want {
			t.Errorf("metricOperation(%q): expected %q, got %q", tt.key, tt.want, got)
		}
	}
}
