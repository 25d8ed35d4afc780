// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.TelemetryConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func f64(v float64) *float64 { return &v }

func testRecords(streamID string, timestamps ...int64) []models.TelemetryRecord {
	meta := models.TelemetryMetadata{
		AuthorUserID: "user-1",
		StreamID:     streamID,
		Coordinates:  models.Coordinates{Latitude: 53.55, Longitude: 9.99},
	}
	out := make([]models.TelemetryRecord, 0, len(timestamps))
	for _, ts := range timestamps {
		r := &models.Reading{Temperature: f64(12.5), Humidity: f64(80)}
		out = append(out, models.NewTelemetryRecord(models.StreamWeatherStation, ts, r, meta))
	}
	return out
}

func TestSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	v, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != len(migrations()) {
		t.Errorf("SchemaVersion() = %d, want %d", v, len(migrations()))
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.initialize(); err != nil {
		t.Fatalf("second initialize() error = %v", err)
	}
}

func TestInsertBatchAssignsIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	records := testRecords("station-1", 1000, 2000, 3000)
	n, err := db.InsertBatch(ctx, models.StreamWeatherStation, records)
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if n != 3 {
		t.Errorf("InsertBatch() = %d, want 3", n)
	}

	seen := make(map[string]bool)
	for _, r := range records {
		if r.ID == "" {
			t.Error("record ID not assigned")
		}
		if seen[r.ID] {
			t.Errorf("duplicate ID %s", r.ID)
		}
		seen[r.ID] = true
		if r.CreatedAt.IsZero() {
			t.Error("record CreatedAt not assigned")
		}
	}
}

func TestInsertBatchEmpty(t *testing.T) {
	db := setupTestDB(t)
	n, err := db.InsertBatch(context.Background(), models.StreamKitePlayer, nil)
	if err != nil || n != 0 {
		t.Errorf("InsertBatch(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestInsertBatchSpansChunks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ts := make([]int64, insertChunkSize*2+7)
	for i := range ts {
		ts[i] = int64(i+1) * 1000
	}
	n, err := db.InsertBatch(ctx, models.StreamWeatherStation, testRecords("station-big", ts...))
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if n != int64(len(ts)) {
		t.Errorf("InsertBatch() = %d, want %d", n, len(ts))
	}

	count, err := db.CountStream(ctx, models.StreamWeatherStation, "station-big")
	if err != nil {
		t.Fatalf("CountStream() error = %v", err)
	}
	if count != int64(len(ts)) {
		t.Errorf("CountStream() = %d, want %d", count, len(ts))
	}
}

func TestFindByTimestamps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertBatch(ctx, models.StreamWeatherStation, testRecords("station-1", 1000, 2000)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if _, err := db.InsertBatch(ctx, models.StreamWeatherStation, testRecords("station-2", 3000)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	found, err := db.FindByTimestamps(ctx, models.StreamWeatherStation, "station-1", []int64{2000, 3000, 4000})
	if err != nil {
		t.Fatalf("FindByTimestamps() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("FindByTimestamps() returned %d records, want 1", len(found))
	}
	got := found[0]
	if got.Timestamp != 2000 || got.Metadata.StreamID != "station-1" {
		t.Errorf("unexpected record %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 12.5 {
		t.Errorf("Temperature = %v, want 12.5", got.Temperature)
	}
	if got.Pressure != nil {
		t.Errorf("Pressure = %v, want nil", *got.Pressure)
	}
	if got.Kind != models.StreamWeatherStation {
		t.Errorf("Kind = %q", got.Kind)
	}
}

func TestStreamKindsAreSeparate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertBatch(ctx, models.StreamKitePlayer, testRecords("shared-id", 1000)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	found, err := db.FindByTimestamps(ctx, models.StreamWeatherStation, "shared-id", []int64{1000})
	if err != nil {
		t.Fatalf("FindByTimestamps() error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("weather lookup saw %d kite records", len(found))
	}
}

func TestListRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	hour := time.Hour.Milliseconds()
	if _, err := db.InsertBatch(ctx, models.StreamKitePlayer,
		testRecords("kite-1", base+3*hour, base, base+hour, base+2*hour)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	tests := []struct {
		name string
		q    RangeQuery
		want []int64
	}{
		{"all", RangeQuery{StreamID: "kite-1", Limit: 10}, []int64{base, base + hour, base + 2*hour, base + 3*hour}},
		{"bounded", RangeQuery{StreamID: "kite-1", From: base + hour, To: base + 2*hour, Limit: 10}, []int64{base + hour, base + 2*hour}},
		{"limited", RangeQuery{StreamID: "kite-1", Limit: 1}, []int64{base}},
		{"other stream", RangeQuery{StreamID: "kite-2", Limit: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListRange(ctx, models.StreamKitePlayer, tt.q)
			if err != nil {
				t.Fatalf("ListRange() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListRange() returned %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Timestamp != tt.want[i] {
					t.Errorf("record %d timestamp = %d, want %d", i, got[i].Timestamp, tt.want[i])
				}
			}
		})
	}
}

func TestUnknownStreamKind(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.InsertBatch(context.Background(), models.StreamKind("balloon"), testRecords("x", 1))
	if !errors.Is(err, ErrUnknownStreamKind) {
		t.Errorf("InsertBatch() error = %v, want ErrUnknownStreamKind", err)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?, ?, ?" {
		t.Errorf("placeholders(3) = %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Errorf("placeholders(0) = %q", got)
	}
}
