// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package ledger persists point awards: an append-only transaction log, a
// running balance per user and the per-user cursor that prevents crediting
// the same reading twice.
//
// Writes happen inside a Tx obtained from Store.Begin. The balance always
// equals the sum of the user's ledger rows because both are only ever
// written together in the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/aeolus/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTxDone is returned when a finished Tx is used again.
var ErrTxDone = errors.New("ledger: transaction already committed or rolled back")

// Store is the ledger and balance store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore wraps an open gorm database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// AutoMigrate creates or updates the ledger tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&PointTransaction{}, &Point{}, &LastProcessedEntry{}); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	return nil
}

// Begin opens a unit of work. The caller must finish it with Commit or
// Rollback; Rollback after Commit is a no-op so it can be deferred.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", tx.Error)
	}
	return &Tx{tx: tx, now: s.now}, nil
}

// ReadCursor returns the user's cursor outside any transaction, or 0.
func (s *Store) ReadCursor(ctx context.Context, userID string) (int64, error) {
	return readCursor(s.db.WithContext(ctx), userID, false)
}

func readCursor(db *gorm.DB, userID string, lock bool) (int64, error) {
	if lock && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry LastProcessedEntry
	err := db.Where("author_user_id = ?", userID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor for %s: %w", userID, err)
	}
	return entry.LastProcessedTimestamp, nil
}

// Tx is a ledger unit of work. It must not be shared between requests.
type Tx struct {
	tx   *gorm.DB
	now  func() time.Time
	done bool
}

// ReadCursor returns the user's cursor, or 0 for a user never credited.
// On PostgreSQL the row is locked until the transaction ends.
func (t *Tx) ReadCursor(ctx context.Context, userID string) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	return readCursor(t.tx.WithContext(ctx), userID, true)
}

// Frozen reports whether the user's balance is administratively frozen.
func (t *Tx) Frozen(ctx context.Context, userID string) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	var p Point
	err := t.tx.WithContext(ctx).Select("freeze_points").Where("author_user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read freeze flag for %s: %w", userID, err)
	}
	return p.FreezePoints, nil
}

// AppendTransaction writes one ledger row.
func (t *Tx) AppendTransaction(ctx context.Context, userID string, amount int64, txType string) error {
	if t.done {
		return ErrTxDone
	}
	row := PointTransaction{AuthorUserID: userID, Amount: amount, TransactionType: txType}
	if err := t.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append point transaction for %s: %w", userID, err)
	}
	return nil
}

// ApplyBalanceDelta increments the user's balance, creating the row on
// first use, and stamps last_point_calculated_timestamp.
func (t *Tx) ApplyBalanceDelta(ctx context.Context, userID string, amount int64) error {
	if t.done {
		return ErrTxDone
	}
	now := t.now()
	row := Point{AuthorUserID: userID, Amount: amount, LastPointCalculatedTimestamp: &now, UpdatedAt: now}
	err := t.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "author_user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":                          gorm.Expr("points.amount + ?", amount),
			"last_point_calculated_timestamp": now,
			"updated_at":                      now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to apply balance delta for %s: %w", userID, err)
	}
	return nil
}

// AdvanceCursor upserts the user's cursor.
func (t *Tx) AdvanceCursor(ctx context.Context, userID string, ts int64) error {
	if t.done {
		return ErrTxDone
	}
	row := LastProcessedEntry{AuthorUserID: userID, LastProcessedTimestamp: ts, UpdatedAt: t.now()}
	err := t.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "author_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_processed_timestamp", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to advance cursor for %s: %w", userID, err)
	}
	return nil
}

// Outcome describes what ApplyAward wrote.
type Outcome int

const (
	// OutcomeCursorOnly means the award was zero; only the cursor was set.
	OutcomeCursorOnly Outcome = iota
	// OutcomeCredited means a ledger row and balance increment were written.
	OutcomeCredited
	// OutcomeFrozen means the balance is frozen; the award was logged and skipped.
	OutcomeFrozen
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCredited:
		return "credited"
	case OutcomeFrozen:
		return "frozen"
	default:
		return "cursor_only"
	}
}

// ApplyAward records a scoring result. A zero award writes no ledger or
// balance rows. A frozen balance is left untouched and the attempted award
// is only logged. The cursor is set in every case.
func (t *Tx) ApplyAward(ctx context.Context, userID string, award int64, cursor int64) (Outcome, error) {
	outcome := OutcomeCursorOnly

	if award > 0 {
		frozen, err := t.Frozen(ctx, userID)
		if err != nil {
			return outcome, err
		}
		if frozen {
			outcome = OutcomeFrozen
			logging.Ctx(ctx).Warn().
				Str("author_user_id", userID).
				Int64("attempted_award", award).
				Msg("points frozen, award not applied")
		} else {
			if err := t.AppendTransaction(ctx, userID, award, TypeTelemetryAward); err != nil {
				return outcome, err
			}
			if err := t.ApplyBalanceDelta(ctx, userID, award); err != nil {
				return outcome, err
			}
			outcome = OutcomeCredited
		}
	}

	if err := t.AdvanceCursor(ctx, userID, cursor); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Commit ends the unit of work.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// Rollback aborts the unit of work. It is a no-op once the Tx is done.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback().Error; err != nil {
		return fmt.Errorf("failed to roll back ledger transaction: %w", err)
	}
	return nil
}
