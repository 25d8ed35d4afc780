// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/middleware"
	"github.com/tomtom215/aeolus/internal/models"
)

// maxBodyBytes bounds JSON request bodies. A full batch of readings fits
// comfortably.
const maxBodyBytes = 8 << 20

func metadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
}

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: metadata(r),
	})
}

// respondError maps err to a status and writes an error envelope. It has
// the auth.ErrorResponder signature so the auth and authz middleware share
// it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classify(err)

	log := logging.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", apiErr.Code).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("code", apiErr.Code).Msg("Request rejected")
	}

	writeEnvelope(w, status, &models.APIResponse{
		Status:   "error",
		Error:    apiErr,
		Metadata: metadata(r),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, resp *models.APIResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// decodeJSON reads a single JSON object into v. Unknown fields are
// ignored; trailing data is not.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedBody, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrMalformedBody)
		default:
			return fmt.Errorf("%w: %s", ErrMalformedBody, err.Error())
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrMalformedBody)
	}
	return nil
}

// queryInt reads a non-negative integer query parameter. Missing means def;
// values above ceiling are clamped.
func queryInt(r *http.Request, key string, def, ceiling int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrMalformedBody, key)
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n, nil
}

// queryTime reads a timestamp as Unix milliseconds or RFC 3339.
func queryTime(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms >= 0 {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be Unix milliseconds or RFC 3339", ErrMalformedBody, key)
	}
	return t.UnixMilli(), nil
}

// sanitizeLogValue escapes control characters to prevent log injection.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
