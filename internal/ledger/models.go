// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ledger

import "time"

// TypeTelemetryAward marks ledger rows credited for telemetry contribution.
const TypeTelemetryAward = "telemetry_award"

// PointTransaction is one immutable ledger row.
type PointTransaction struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorUserID    string    `gorm:"size:64;not null;index:idx_point_tx_author" json:"author_user_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	TransactionType string    `gorm:"size:32;not null" json:"transaction_type"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

// Point is the running balance projection of the ledger.
type Point struct {
	AuthorUserID                 string     `gorm:"primaryKey;size:64" json:"author_user_id"`
	Amount                       int64      `gorm:"not null;default:0" json:"amount"`
	LastPointCalculatedTimestamp *time.Time `json:"last_point_calculated_timestamp"`
	FreezePoints                 bool       `gorm:"not null;default:false" json:"freeze_points"`
	UpdatedAt                    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Point) TableName() string {
	return "points"
}

// LastProcessedEntry is the per-user crediting cursor.
type LastProcessedEntry struct {
	AuthorUserID           string    `gorm:"primaryKey;size:64" json:"author_user_id"`
	LastProcessedTimestamp int64     `gorm:"not null" json:"last_processed_timestamp"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LastProcessedEntry) TableName() string {
	return "last_processed_entries"
}
