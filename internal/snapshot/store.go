// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package snapshot persists the last known vehicle status across restarts.
//
// The store holds exactly one value under a fixed key, overwritten on every
// save. A warm boot seeds the status cache from it so the first reads after
// a restart serve stale-but-real data instead of failing with an empty
// cache; this is state recovery, not telemetry history.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/evhome/bluelink-gateway/internal/gateway"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/models"
)

// statusKey is the single key the snapshot lives under.
const statusKey = "vehicle:status:last"

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no status snapshot stored")

// Store is a BadgerDB-backed snapshot store. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

var _ gateway.SnapshotStore = (*Store)(nil)

// Open opens (or creates) the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Suppress BadgerDB logs
	// One tiny value, written at most once per upstream poll: durability
	// matters, write throughput does not.
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	logging.Info().Str("dir", dir).Msg("Snapshot store opened")
	return &Store{db: db}, nil
}

// Save overwrites the stored snapshot.
func (s *Store) Save(status *models.VehicleStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(statusKey), data)
	})
}

// Load returns the stored snapshot, or ErrNoSnapshot.
func (s *Store) Load() (*models.VehicleStatus, error) {
	var status models.VehicleStatus

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(statusKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return fmt.Errorf("get status snapshot: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &status)
		})
	})
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
