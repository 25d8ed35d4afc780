// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ingest

import (
	"context"

	"github.com/tomtom215/aeolus/internal/events"
	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/models"
)

// TelemetryStore is the non-transactional telemetry collaborator.
type TelemetryStore interface {
	FindByTimestamps(ctx context.Context, kind models.StreamKind, streamID string, timestamps []int64) ([]models.TelemetryRecord, error)
	InsertBatch(ctx context.Context, kind models.StreamKind, records []models.TelemetryRecord) (int64, error)
}

// LedgerTx is one ledger unit of work. It is never shared between batches.
type LedgerTx interface {
	ReadCursor(ctx context.Context, userID string) (int64, error)
	ApplyAward(ctx context.Context, userID string, award, cursor int64) (ledger.Outcome, error)
	Commit() error
	Rollback() error
}

// Ledger opens units of work.
type Ledger interface {
	Begin(ctx context.Context) (LedgerTx, error)
}

// EventPublisher receives post-commit notifications.
type EventPublisher interface {
	PublishTelemetryIngested(ctx context.Context, e events.TelemetryIngested) error
	PublishPointsAwarded(ctx context.Context, e events.PointsAwarded) error
}

// LedgerStore adapts a *ledger.Store to Ledger.
func LedgerStore(s *ledger.Store) Ledger {
	return storeLedger{store: s}
}

type storeLedger struct {
	store *ledger.Store
}

func (l storeLedger) Begin(ctx context.Context) (LedgerTx, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
