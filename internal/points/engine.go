// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package points computes gamification awards for telemetry contributions.
//
// A contributor earns PerHour points for every distinct clock hour and PerDay
// points for every distinct calendar day covered by readings newer than their
// cursor (the last credited reading timestamp). Bucketing by hour and day
// caps the reward density: many readings in one hour earn the same as one.
package points

import "github.com/tomtom215/aeolus/internal/timebucket"

// Result is the outcome of scoring one batch.
type Result struct {
	Awarded int
	Cursor  int64

	// Hours and Days are the number of distinct buckets credited.
	Hours int
	Days  int
}

// Engine scores batches. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	buckets timebucket.Bucketer
}

// NewEngine returns an Engine bound to cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, buckets: timebucket.New(cfg.Location())}
}

// Config returns the award table the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Calculate scores timestamps (Unix millis, in submission order) against
// priorCursor.
//
// Only timestamps strictly greater than the running cursor count. The cursor
// moves to a reading's timestamp whenever that reading opens a new hour
// bucket, so for an unsorted batch the returned cursor is the timestamp of
// the last hour-opening reading in input order, not the batch maximum.
func (e *Engine) Calculate(priorCursor int64, timestamps []int64) Result {
	cursor := priorCursor
	days := make(map[int64]struct{})
	hours := make(map[int64]struct{})

	for _, ts := range timestamps {
		if ts <= cursor {
			continue
		}
		days[e.buckets.Day(ts)] = struct{}{}

		hour := e.buckets.Hour(ts)
		if _, seen := hours[hour]; !seen {
			hours[hour] = struct{}{}
			cursor = ts
		}
	}

	return Result{
		Awarded: len(days)*e.cfg.perDay + len(hours)*e.cfg.perHour,
		Cursor:  cursor,
		Hours:   len(hours),
		Days:    len(days),
	}
}
