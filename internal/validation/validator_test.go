// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/aeolus/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func f64(v float64) *float64 { return &v }

func validSubmission() models.BatchSubmission {
	return models.BatchSubmission{
		Coordinates: &models.Coordinates{Latitude: 47.37, Longitude: 8.54},
		Data: []models.Reading{
			{Timestamp: 1704448800000, Temperature: f64(4.2)},
			{TimestampISO: "2024-01-05T11:00:00Z", Humidity: f64(55)},
		},
	}
}

func TestValidateStruct_BatchSubmission(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.BatchSubmission)
		wantField string
		wantTag   string
	}{
		{
			name:   "valid",
			mutate: func(*models.BatchSubmission) {},
		},
		{
			name:      "missing coordinates",
			mutate:    func(b *models.BatchSubmission) { b.Coordinates = nil },
			wantField: "coordinates",
			wantTag:   "required",
		},
		{
			name:      "latitude out of range",
			mutate:    func(b *models.BatchSubmission) { b.Coordinates.Latitude = 91 },
			wantField: "coordinates.latitude",
			wantTag:   "lte",
		},
		{
			name:      "empty data",
			mutate:    func(b *models.BatchSubmission) { b.Data = []models.Reading{} },
			wantField: "data",
			wantTag:   "min",
		},
		{
			name:      "reading without any timestamp",
			mutate:    func(b *models.BatchSubmission) { b.Data[1].TimestampISO = "" },
			wantField: "data[1].timestamp",
			wantTag:   "required_without",
		},
		{
			name:      "humidity above 100",
			mutate:    func(b *models.BatchSubmission) { b.Data[0].Humidity = f64(101) },
			wantField: "data[0].humidity",
			wantTag:   "lte",
		},
		{
			name:      "sensor id too long",
			mutate:    func(b *models.BatchSubmission) { b.SensorID = strings.Repeat("x", 129) },
			wantField: "sensor_id",
			wantTag:   "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.mutate(&sub)

			err := ValidateStruct(&sub)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() expected error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%v), want 1", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestRequiredWithoutMessage(t *testing.T) {
	sub := validSubmission()
	sub.Data[0].Timestamp = 0

	err := ValidateStruct(&sub)
	if err == nil {
		t.Fatal("expected error")
	}
	want := "data[0].timestamp is required when timestamp_iso is absent"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidateVar_StreamID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"station-01", true},
		{"kite_player.7", true},
		{"", false},
		{"has space", false},
		{"slash/inside", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		err := ValidateVar("station_id", tt.id, "streamid")
		if (err == nil) != tt.valid {
			t.Errorf("ValidateVar(%q) error = %v, valid want %v", tt.id, err, tt.valid)
		}
		if err != nil && err.Errors()[0].Field() != "station_id" {
			t.Errorf("Field() = %q, want station_id", err.Errors()[0].Field())
		}
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	err := NewFieldError("data", "max", "data must contain at most 10 items", 11)
	apiErr := err.ToAPIError()

	if apiErr.Code != CodeValidationFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, CodeValidationFailed)
	}
	if apiErr.Message != "data must contain at most 10 items" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "data" {
		t.Errorf("Details[field] = %v", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	sub := validSubmission()
	sub.Coordinates.Latitude = -100
	sub.Coordinates.Longitude = 200

	err := ValidateStruct(&sub)
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] has type %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("got %d field errors, want 2", len(fields))
	}
	if !strings.Contains(apiErr.Message, "coordinates.longitude") {
		t.Errorf("Message %q does not name longitude", apiErr.Message)
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"TimestampISO": "timestamp_iso",
		"SensorID":     "sensor_id",
		"Latitude":     "latitude",
	}
	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
