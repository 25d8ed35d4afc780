// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tomtom215/aeolus/internal/logging"
)

// ErrRevocationStoreClosed is returned after Close.
var ErrRevocationStoreClosed = errors.New("revocation store is closed")

// RevocationStore remembers revoked token IDs until the token would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

// MemoryRevocationStore keeps revocations in process memory. Revocations
// are lost on restart.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	closed  bool
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke records jti until expiresAt. Already-expired tokens are ignored.
func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRevocationStoreClosed
	}
	now := s.now()
	if !expiresAt.After(now) {
		return nil
	}
	for id, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, id)
		}
	}
	s.entries[jti] = expiresAt
	return nil
}

// IsRevoked reports whether jti was revoked and has not yet expired.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrRevocationStoreClosed
	}
	exp, ok := s.entries[jti]
	return ok && s.now().Before(exp), nil
}

// Close releases the store.
func (s *MemoryRevocationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

const revocationKeyPrefix = "revoked_jti:"

// BadgerRevocationStore persists revocations in BadgerDB. Each key carries
// a TTL equal to the token's remaining lifetime, so expired revocations
// disappear without a sweep.
type BadgerRevocationStore struct {
	db     *badger.DB
	ownsDB bool
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// OpenBadgerRevocationStore opens (or creates) a BadgerDB at path.
func OpenBadgerRevocationStore(path string) (*BadgerRevocationStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for session revocations: %w", err)
	}
	return &BadgerRevocationStore{db: db, ownsDB: true, now: time.Now}, nil
}

// NewBadgerRevocationStore uses an existing BadgerDB. Close leaves the
// database open.
func NewBadgerRevocationStore(db *badger.DB) *BadgerRevocationStore {
	return &BadgerRevocationStore{db: db, now: time.Now}
}

func revocationKey(jti string) []byte {
	return []byte(revocationKeyPrefix + jti)
}

// Revoke records jti until expiresAt. Already-expired tokens are ignored.
func (s *BadgerRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		value := []byte(strconv.FormatInt(expiresAt.Unix(), 10))
		return txn.SetEntry(badger.NewEntry(revocationKey(jti), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked and has not yet expired.
func (s *BadgerRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var revoked bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(revocationKey(jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read revocation: %w", err)
	}
	return revoked, nil
}

// Serve runs value log garbage collection until ctx is canceled. It has
// the suture.Service signature.
func (s *BadgerRevocationStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("Revocation store GC failed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *BadgerRevocationStore) String() string {
	return "revocation-gc"
}

// Close closes the database if the store opened it.
func (s *BadgerRevocationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *BadgerRevocationStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrRevocationStoreClosed
	}
	return nil
}

var (
	_ RevocationStore = (*MemoryRevocationStore)(nil)
	_ RevocationStore = (*BadgerRevocationStore)(nil)
)
