// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "weather_data"))

	RecordDBQuery("insert", "weather_data", 5*time.Millisecond, nil)
	RecordDBQuery("insert", "weather_data", 5*time.Millisecond, errors.New("disk full"))

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "weather_data"))
	if after-before != 1 {
		t.Errorf("DBQueryErrors delta = %v, want 1", after-before)
	}
}

func TestRecordIngest(t *testing.T) {
	inserted := IngestReadings.WithLabelValues("kite_player", "inserted")
	dup := IngestReadings.WithLabelValues("kite_player", "duplicate")
	future := IngestReadings.WithLabelValues("kite_player", "future")
	batches := IngestBatches.WithLabelValues("kite_player", "success")

	b0, i0, d0, f0 := testutil.ToFloat64(batches), testutil.ToFloat64(inserted), testutil.ToFloat64(dup), testutil.ToFloat64(future)

	RecordIngest(IngestResult{
		Kind:       "kite_player",
		Outcome:    "success",
		Inserted:   4,
		Duplicates: 2,
		Duration:   30 * time.Millisecond,
	})

	if got := testutil.ToFloat64(batches) - b0; got != 1 {
		t.Errorf("batches delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(inserted) - i0; got != 4 {
		t.Errorf("inserted delta = %v, want 4", got)
	}
	if got := testutil.ToFloat64(dup) - d0; got != 2 {
		t.Errorf("duplicate delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(future) - f0; got != 0 {
		t.Errorf("future delta = %v, want 0", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active = %v, want %v", got, before)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"closed", "open", 2},
		{"open", "half-open", 1},
		{"half-open", "closed", 0},
	}
	for _, tt := range tests {
		RecordCircuitBreakerTransition("test-breaker", tt.from, tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != tt.want {
			t.Errorf("%s -> %s: state = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
