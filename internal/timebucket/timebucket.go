// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package timebucket maps reading timestamps (Unix milliseconds) to the
// calendar day and clock hour that contain them. Bucket keys are themselves
// Unix milliseconds of the bucket start, so they compare and hash cheaply.
package timebucket

import "time"

// Bucketer truncates timestamps in a fixed location. The zero value uses UTC.
type Bucketer struct {
	loc *time.Location
}

// New returns a Bucketer that interprets "local" as loc. A nil loc means UTC.
func New(loc *time.Location) Bucketer {
	return Bucketer{loc: loc}
}

func (b Bucketer) location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// Day returns the start of the local calendar day containing ts.
func (b Bucketer) Day(ts int64) int64 {
	t := time.UnixMilli(ts).In(b.location())
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.location()).UnixMilli()
}

// Hour returns the start of the clock hour containing ts.
//
// Minutes, seconds and milliseconds are zeroed in local time, which keeps
// half-hour and quarter-hour offset zones on their own hour boundaries.
func (b Bucketer) Hour(ts int64) int64 {
	t := time.UnixMilli(ts).In(b.location())
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, b.location()).UnixMilli()
}

// DayBucket is Day in the process local zone.
func DayBucket(ts int64) int64 {
	return New(time.Local).Day(ts)
}

// HourBucket is Hour in the process local zone.
func HourBucket(ts int64) int64 {
	return New(time.Local).Hour(ts)
}
