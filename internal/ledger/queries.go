// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Balance returns the user's balance row. A user never credited gets a
// zero-valued Point carrying only the user id.
func (s *Store) Balance(ctx context.Context, userID string) (Point, error) {
	var p Point
	err := s.db.WithContext(ctx).Where("author_user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Point{AuthorUserID: userID}, nil
	}
	if err != nil {
		return Point{}, fmt.Errorf("failed to read balance for %s: %w", userID, err)
	}
	return p, nil
}

// Transactions lists the user's ledger rows, newest first.
func (s *Store) Transactions(ctx context.Context, userID string, limit, offset int) ([]PointTransaction, error) {
	var rows []PointTransaction
	err := s.db.WithContext(ctx).
		Where("author_user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list point transactions for %s: %w", userID, err)
	}
	return rows, nil
}

// Leaderboard returns the highest balances.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Point, error) {
	var rows []Point
	err := s.db.WithContext(ctx).
		Where("amount > 0").
		Order("amount DESC").
		Order("author_user_id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return rows, nil
}

// SetFrozen sets the freeze_points flag, creating a zero balance row if needed.
func (s *Store) SetFrozen(ctx context.Context, userID string, frozen bool) error {
	now := s.now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "author_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"freeze_points", "updated_at"}),
	}).Select("author_user_id", "amount", "freeze_points", "updated_at").
		Create(&Point{AuthorUserID: userID, FreezePoints: frozen, UpdatedAt: now}).Error
	if err != nil {
		return fmt.Errorf("failed to set freeze flag for %s: %w", userID, err)
	}
	return nil
}

// Reconciliation compares a balance with its ledger.
type Reconciliation struct {
	AuthorUserID string `json:"author_user_id"`
	Balance      int64  `json:"balance"`
	LedgerSum    int64  `json:"ledger_sum"`
	Entries      int64  `json:"entries"`
	Consistent   bool   `json:"consistent"`
}

// Reconcile checks that the balance equals the sum of the user's ledger rows.
func (s *Store) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	var agg struct {
		Total int64
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&PointTransaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("author_user_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return Reconciliation{}, fmt.Errorf("failed to sum ledger for %s: %w", userID, err)
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	return Reconciliation{
		AuthorUserID: userID,
		Balance:      balance.Amount,
		LedgerSum:    agg.Total,
		Entries:      agg.Count,
		Consistent:   balance.Amount == agg.Total,
	}, nil
}
