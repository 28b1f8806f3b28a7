// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/evhome/bluelink-gateway/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func TestStore_LoadEmpty(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load()
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Expected ErrNoSnapshot, got %v", err)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	retrieved := time.Now().UTC().Truncate(time.Millisecond)
	saved := &models.VehicleStatus{
		DoorsLocked:  true,
		SoCPercent:   64,
		EVRangeKm:    280.5,
		TotalRangeKm: 280.5,
		OdometerKm:   20481.3,
		Latitude:     59.91,
		Longitude:    10.75,
		RetrievedAt:  retrieved,
	}

	if err := store.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.SoCPercent != 64 {
		t.Errorf("Expected SoC 64, got %d", loaded.SoCPercent)
	}
	if loaded.OdometerKm != 20481.3 {
		t.Errorf("Expected odometer 20481.3, got %g", loaded.OdometerKm)
	}
	if !loaded.DoorsLocked {
		t.Error("Expected doors locked")
	}
	if !loaded.RetrievedAt.Equal(retrieved) {
		t.Errorf("Expected RetrievedAt %v, got %v", retrieved, loaded.RetrievedAt)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := openTestStore(t)

	first := &models.VehicleStatus{SoCPercent: 50, RetrievedAt: time.Now().Add(-time.Hour)}
	second := &models.VehicleStatus{SoCPercent: 75, RetrievedAt: time.Now()}

	if err := store.Save(first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.Save(second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.SoCPercent != 75 {
		t.Errorf("Expected the later snapshot, got SoC %d", loaded.SoCPercent)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := store.Save(&models.VehicleStatus{SoCPercent: 42, RetrievedAt: time.Now()}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if loaded.SoCPercent != 42 {
		t.Errorf("Expected the persisted snapshot, got SoC %d", loaded.SoCPercent)
	}
}
