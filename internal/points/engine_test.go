// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomtom215/aeolus/internal/timebucket"
)

var plusTwo = time.FixedZone("UTC+2", 2*60*60)

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func newTestEngine(t *testing.T, loc *time.Location) *Engine {
	t.Helper()
	cfg, err := NewConfig(DefaultPerHour, DefaultPerDay, loc)
	require.NoError(t, err)
	return NewEngine(cfg)
}

func TestNewConfigRejectsNegative(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(-1, 5, nil)
	assert.Error(t, err)
	_, err = NewConfig(1, -5, nil)
	assert.Error(t, err)

	cfg, err := NewConfig(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestCalculateEmptyBatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	res := e.Calculate(123456789, nil)

	assert.Equal(t, 0, res.Awarded)
	assert.Equal(t, int64(123456789), res.Cursor)
}

func TestCalculatePastReading(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	res := e.Calculate(123456789, []int64{123456788})

	assert.Equal(t, 0, res.Awarded)
	assert.Equal(t, int64(123456789), res.Cursor)
}

func TestCalculateReadingAtCursorIsNotCounted(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	res := e.Calculate(123456789, []int64{123456789})

	assert.Equal(t, 0, res.Awarded)
	assert.Equal(t, 0, res.Hours)
	assert.Equal(t, 0, res.Days)
}

func TestCalculateSingleFutureReading(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	now := time.Now().UnixMilli()
	res := e.Calculate(123456789000, []int64{now})

	assert.Equal(t, DefaultPerHour+DefaultPerDay, res.Awarded)
	assert.Equal(t, now, res.Cursor)
}

func TestCalculateSameLocalDayAsPinnedNow(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, plusTwo)
	pinnedNow := ms("2024-01-05T10:00:00Z")
	reading := ms("2024-01-04T23:00:00Z")

	b := timebucket.New(plusTwo)
	require.Equal(t, b.Day(pinnedNow), b.Day(reading), "fixture must share the local day")

	res := e.Calculate(0, []int64{reading})
	assert.Equal(t, DefaultPerHour+DefaultPerDay, res.Awarded)
	assert.Equal(t, reading, res.Cursor)
}

func TestCalculateSecondHourSameDayAddsOnlyHourlyPoints(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, plusTwo)
	cursor := ms("2024-01-05T10:00:00Z")
	// Both land on 2024-01-06 local (UTC+2), one hour apart.
	first := ms("2024-01-05T22:30:00Z")
	second := ms("2024-01-05T23:00:00Z")

	one := e.Calculate(cursor, []int64{first})
	both := e.Calculate(cursor, []int64{first, second})

	assert.Equal(t, DefaultPerHour+DefaultPerDay, one.Awarded)
	assert.Equal(t, DefaultPerHour, both.Awarded-one.Awarded)
	assert.Equal(t, 1, both.Days)
	assert.Equal(t, 2, both.Hours)
}

func TestCalculateCrossesLocalMidnight(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, plusTwo)
	// 21:30Z is 23:30 local on the 5th; 22:30Z is 00:30 local on the 6th.
	res := e.Calculate(0, []int64{ms("2024-01-05T21:30:00Z"), ms("2024-01-05T22:30:00Z")})

	assert.Equal(t, 2, res.Days)
	assert.Equal(t, 2, res.Hours)
	assert.Equal(t, 2*DefaultPerHour+2*DefaultPerDay, res.Awarded)
}

func TestCalculateDuplicatesInOneHourCreditOnce(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	base := ms("2024-03-01T08:00:00Z")
	batch := []int64{base + 1000, base + 2000, base + 2000, base + 59*60*1000}

	res := e.Calculate(0, batch)
	assert.Equal(t, DefaultPerHour+DefaultPerDay, res.Awarded)
	assert.Equal(t, 1, res.Hours)
}

func TestCalculateStrictlyNewerOnly(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	cursor := ms("2024-03-01T08:30:00Z")
	// The 08:10 reading is older than the cursor and contributes nothing,
	// while 08:45 opens the 08:00 hour again for this batch.
	res := e.Calculate(cursor, []int64{ms("2024-03-01T08:10:00Z"), ms("2024-03-01T08:45:00Z")})

	assert.Equal(t, 1, res.Hours)
	assert.Equal(t, ms("2024-03-01T08:45:00Z"), res.Cursor)
}

// The cursor follows the last reading that opened a new hour, not the newest
// reading. A later reading inside an already-open hour leaves it behind, and
// in an unsorted batch an older reading after a newer one is skipped.
func TestCalculateCursorIsOrderDependent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.UTC)
	t1010 := ms("2024-03-01T10:10:00Z")
	t1050 := ms("2024-03-01T10:50:00Z")
	t1130 := ms("2024-03-01T11:30:00Z")

	sorted := e.Calculate(0, []int64{t1010, t1050})
	assert.Equal(t, t1010, sorted.Cursor, "cursor stays on the hour-opening reading")

	unsorted := e.Calculate(0, []int64{t1130, t1010, t1050})
	assert.Equal(t, t1130, unsorted.Cursor)
	assert.Equal(t, 1, unsorted.Hours, "10:xx readings after 11:30 are behind the running cursor")

	reordered := e.Calculate(0, []int64{t1010, t1050, t1130})
	assert.Equal(t, 2, reordered.Hours)
	assert.NotEqual(t, unsorted.Awarded, reordered.Awarded, "same readings, different order, different award")

	// Because the cursor lagged at 10:10, resubmitting 10:50 is credited again.
	again := e.Calculate(sorted.Cursor, []int64{t1050})
	assert.Equal(t, DefaultPerHour+DefaultPerDay, again.Awarded)
}

func TestCalculateCustomTable(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(10, 100, time.UTC)
	require.NoError(t, err)
	e := NewEngine(cfg)

	res := e.Calculate(0, []int64{ms("2024-03-01T10:00:00Z"), ms("2024-03-01T11:00:00Z"), ms("2024-03-02T11:00:00Z")})
	assert.Equal(t, 3*10+2*100, res.Awarded)
	assert.Equal(t, cfg, e.Config())
}
