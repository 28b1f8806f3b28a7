// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evhome/bluelink-gateway/internal/upstream"
)

func TestSessionManager_LazyLogin(t *testing.T) {
	fake := &fakeClient{}
	mgr := NewSessionManager(fake, 2*time.Minute)

	if c := fake.counts(); c.login != 0 {
		t.Errorf("Expected no login before first Obtain, got %d", c.login)
	}

	sess, err := mgr.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if sess.AccessToken != "fake-token" {
		t.Errorf("Expected fake-token, got %s", sess.AccessToken)
	}

	// A second Obtain reuses the held session.
	again, err := mgr.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Second Obtain failed: %v", err)
	}
	if again != sess {
		t.Error("Expected the same session to be reused")
	}
	if c := fake.counts(); c.login != 1 {
		t.Errorf("Expected 1 login, got %d", c.login)
	}
}

func TestSessionManager_ConcurrentObtainSingleLogin(t *testing.T) {
	fake := &fakeClient{
		loginFn: func(call int) (*upstream.Session, error) {
			time.Sleep(100 * time.Millisecond)
			return &upstream.Session{
				AccessToken: "fake-token",
				VIN:         testVIN,
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
	mgr := NewSessionManager(fake, 2*time.Minute)

	const obtainers = 5
	var wg sync.WaitGroup
	errs := make(chan error, obtainers)
	for i := 0; i < obtainers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Obtain(context.Background())
			errs <- err
		}()
	}
	wg.Wait()

	for i := 0; i < obtainers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Obtain failed: %v", err)
		}
	}
	if c := fake.counts(); c.login != 1 {
		t.Errorf("Expected concurrent obtainers to share 1 login, got %d", c.login)
	}
}

func TestSessionManager_InvalidateForcesRelogin(t *testing.T) {
	fake := &fakeClient{}
	mgr := NewSessionManager(fake, 2*time.Minute)

	if _, err := mgr.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}

	mgr.Invalidate()

	if _, err := mgr.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain after invalidation failed: %v", err)
	}
	if c := fake.counts(); c.login != 2 {
		t.Errorf("Expected 2 logins, got %d", c.login)
	}
}

func TestSessionManager_ExpiryMarginForcesRelogin(t *testing.T) {
	fake := &fakeClient{
		loginFn: func(call int) (*upstream.Session, error) {
			// Expires inside the 2m renewal margin.
			return &upstream.Session{
				AccessToken: "fake-token",
				VIN:         testVIN,
				ExpiresAt:   time.Now().Add(time.Minute),
			}, nil
		},
	}
	mgr := NewSessionManager(fake, 2*time.Minute)

	if _, err := mgr.Obtain(context.Background()); err != nil {
		t.Fatalf("First Obtain failed: %v", err)
	}
	if _, err := mgr.Obtain(context.Background()); err != nil {
		t.Fatalf("Second Obtain failed: %v", err)
	}
	if c := fake.counts(); c.login != 2 {
		t.Errorf("Expected a re-login for the expiring session, got %d logins", c.login)
	}
}

func TestSessionManager_LoginFailureSurfaces(t *testing.T) {
	fake := &fakeClient{
		loginFn: func(call int) (*upstream.Session, error) {
			return nil, upstream.ErrAuthenticationFailed
		},
	}
	mgr := NewSessionManager(fake, 2*time.Minute)

	_, err := mgr.Obtain(context.Background())
	if !errors.Is(err, upstream.ErrAuthenticationFailed) {
		t.Fatalf("Expected authentication failure, got %v", err)
	}
	if got := mgr.State(); got != "unauthenticated" {
		t.Errorf("Expected unauthenticated after failed login, got %s", got)
	}

	// No failure latch: the next Obtain attempts a fresh login.
	mgr.Obtain(context.Background())
	if c := fake.counts(); c.login != 2 {
		t.Errorf("Expected 2 login attempts, got %d", c.login)
	}
}

func TestSessionManager_State(t *testing.T) {
	fake := &fakeClient{}
	mgr := NewSessionManager(fake, 2*time.Minute)

	if got := mgr.State(); got != "unauthenticated" {
		t.Errorf("Expected unauthenticated, got %s", got)
	}

	mgr.Obtain(context.Background())
	if got := mgr.State(); got != "authenticated" {
		t.Errorf("Expected authenticated, got %s", got)
	}

	mgr.Invalidate()
	if got := mgr.State(); got != "invalid" {
		t.Errorf("Expected invalid, got %s", got)
	}
}

func TestSessionManager_StateExpired(t *testing.T) {
	fake := &fakeClient{
		loginFn: func(call int) (*upstream.Session, error) {
			return &upstream.Session{
				AccessToken: "fake-token",
				VIN:         testVIN,
				ExpiresAt:   time.Now().Add(time.Minute),
			}, nil
		},
	}
	mgr := NewSessionManager(fake, 2*time.Minute)

	mgr.Obtain(context.Background())
	if got := mgr.State(); got != "expired" {
		t.Errorf("Expected expired for a session inside the margin, got %s", got)
	}
}

func TestSessionManager_VIN(t *testing.T) {
	fake := &fakeClient{}
	mgr := NewSessionManager(fake, 2*time.Minute)

	if got := mgr.VIN(); got != "" {
		t.Errorf("Expected empty VIN before login, got %s", got)
	}

	mgr.Obtain(context.Background())
	if got := mgr.VIN(); got != testVIN {
		t.Errorf("Expected %s, got %s", testVIN, got)
	}
}

func TestMaskVIN(t *testing.T) {
	tests := []struct {
		vin  string
		want string
	}{
		{"KNDJ23AU4N7000001", "****0001"},
		{"ABCD", "****"},
		{"", "****"},
	}

	for _, tt := range tests {
		if got := maskVIN(tt.vin); got != tt.want {
			t.Errorf("maskVIN(%q): expected %q, got %q", tt.vin, tt.want, got)
		}
	}
}
