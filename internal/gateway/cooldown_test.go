// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/evhome/bluelink-gateway/internal/config"
)

func testCooldowns(refresh, command time.Duration) *CooldownTracker {
	return NewCooldownTracker(config.CooldownConfig{
		StatusRefresh: refresh,
		Command:       command,
	})
}

func TestCooldownTracker_FirstAttemptAllowed(t *testing.T) {
	tracker := testCooldowns(time.Hour, time.Hour)

	if err := tracker.TryAcquire(ClassRefresh); err != nil {
		t.Errorf("Expected first refresh attempt to be allowed, got %v", err)
	}
	if err := tracker.TryAcquire(ClassCommand); err != nil {
		t.Errorf("Expected first command attempt to be allowed, got %v", err)
	}
}

func TestCooldownTracker_RejectsInsideWindow(t *testing.T) {
	tracker := testCooldowns(time.Hour, 200*time.Millisecond)
	tracker.RecordAttempt(ClassCommand)

	err := tracker.TryAcquire(ClassCommand)
	var cooldown *CooldownActiveError
	if !errors.As(err, &cooldown) {
		t.Fatalf("Expected CooldownActiveError, got %v", err)
	}
	if cooldown.Class != ClassCommand {
		t.Errorf("Expected command class, got %s", cooldown.Class)
	}
	if cooldown.Remaining <= 0 || cooldown.Remaining > 200*time.Millisecond {
		t.Errorf("Expected remaining within the window, got %v", cooldown.Remaining)
	}
}

func TestCooldownTracker_AllowsAfterWindow(t *testing.T) {
	tracker := testCooldowns(time.Hour, 50*time.Millisecond)
	tracker.RecordAttempt(ClassCommand)

	time.Sleep(80 * time.Millisecond)

	if err := tracker.TryAcquire(ClassCommand); err != nil {
		t.Errorf("Expected attempt after the window to be allowed, got %v", err)
	}
}

func TestCooldownTracker_ClassesAreIndependent(t *testing.T) {
	tracker := testCooldowns(time.Hour, time.Hour)
	tracker.RecordAttempt(ClassCommand)

	if err := tracker.TryAcquire(ClassRefresh); err != nil {
		t.Errorf("Expected command window not to block refreshes, got %v", err)
	}

	tracker.RecordAttempt(ClassRefresh)
	if err := tracker.TryAcquire(ClassCommand); err == nil {
		t.Error("Expected the command window to still be active")
	}
}

func TestCooldownTracker_Remaining(t *testing.T) {
	tracker := testCooldowns(time.Hour, 100*time.Millisecond)

	if got := tracker.Remaining(ClassCommand); got != 0 {
		t.Errorf("Expected zero remaining before any attempt, got %v", got)
	}

	tracker.RecordAttempt(ClassCommand)
	if got := tracker.Remaining(ClassCommand); got <= 0 || got > 100*time.Millisecond {
		t.Errorf("Expected remaining within the window, got %v", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := tracker.Remaining(ClassCommand); got != 0 {
		t.Errorf("Expected zero remaining after the window, got %v", got)
	}
}

func TestCooldownTracker_ZeroWindowDisablesGate(t *testing.T) {
	tracker := testCooldowns(0, 0)
	tracker.RecordAttempt(ClassRefresh)
	tracker.RecordAttempt(ClassCommand)

	if err := tracker.TryAcquire(ClassRefresh); err != nil {
		t.Errorf("Expected zero window to admit immediately, got %v", err)
	}
	if err := tracker.TryAcquire(ClassCommand); err != nil {
		t.Errorf("Expected zero window to admit immediately, got %v", err)
	}
}

func TestCooldownClassString(t *testing.T) {
	if got := ClassRefresh.String(); got != "refresh" {
		t.Errorf("Expected refresh, got %s", got)
	}
	if got := ClassCommand.String(); got != "command" {
		t.Errorf("Expected command, got %s", got)
	}
	if got := CooldownClass(99).String(); got != "unknown" {
		t.Errorf("Expected unknown, got %s", got)
	}
}
