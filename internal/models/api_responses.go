// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package models

import "time"

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error code plus a human message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BatchResult is the data of a successful batch submission.
type BatchResult struct {
	Records      []IngestAck `json:"records"`
	Inserted     int         `json:"inserted"`
	Duplicates   int         `json:"duplicates"`
	Discarded    int         `json:"discarded"`
	PointsEarned int         `json:"points_earned"`
}

// PointsSummary is the caller's balance view.
type PointsSummary struct {
	AuthorUserID                 string     `json:"author_user_id"`
	Amount                       int64      `json:"amount"`
	LastPointCalculatedTimestamp *time.Time `json:"last_point_calculated_timestamp"`
	FreezePoints                 bool       `json:"freeze_points"`
	LastProcessedTimestamp       int64      `json:"last_processed_timestamp"`
}

// FreezeRequest toggles an administrative points freeze.
type FreezeRequest struct {
	Frozen *bool `json:"frozen" validate:"required"`
}
