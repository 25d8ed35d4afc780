// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/aeolus/internal/database"
	"github.com/tomtom215/aeolus/internal/ingest"
	"github.com/tomtom215/aeolus/internal/models"
)

// Telemetry read-back limits.
const (
	defaultTelemetryLimit = 500
	maxTelemetryLimit     = 5000
)

// SubmitTelemetry returns the batch submission handler for kind. The
// author is always the authenticated caller.
func (h *Handler) SubmitTelemetry(kind models.StreamKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerOrReject(w, r)
		if caller == nil {
			return
		}

		var submission models.BatchSubmission
		if err := decodeJSON(w, r, &submission); err != nil {
			respondError(w, r, err)
			return
		}

		result, err := h.deps.Ingest.Submit(r.Context(), ingest.Request{
			Kind:         kind,
			StreamID:     chi.URLParam(r, "streamID"),
			AuthorUserID: caller.ID,
			Submission:   submission,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusCreated, models.BatchResult{
			Records:      result.Acks,
			Inserted:     result.Inserted,
			Duplicates:   result.Duplicates,
			Discarded:    result.Discarded,
			PointsEarned: result.Score.Awarded,
		})
	}
}

// ListTelemetry returns the read-back handler for kind. Query parameters
// from and to accept Unix milliseconds or RFC 3339 and are inclusive.
func (h *Handler) ListTelemetry(kind models.StreamKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := queryTime(r, "from")
		if err != nil {
			respondError(w, r, err)
			return
		}
		to, err := queryTime(r, "to")
		if err != nil {
			respondError(w, r, err)
			return
		}
		if from > 0 && to > 0 && to < from {
			respondError(w, r, fmt.Errorf("%w: to must not be before from", ErrMalformedBody))
			return
		}
		limit, err := queryInt(r, "limit", defaultTelemetryLimit, maxTelemetryLimit)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if limit == 0 {
			limit = defaultTelemetryLimit
		}

		records, err := h.deps.Telemetry.ListRange(r.Context(), kind, database.RangeQuery{
			StreamID: chi.URLParam(r, "streamID"),
			From:     from,
			To:       to,
			Limit:    limit,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		if records == nil {
			records = []models.TelemetryRecord{}
		}
		respondJSON(w, r, http.StatusOK, records)
	}
}
