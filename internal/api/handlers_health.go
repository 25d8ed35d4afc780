// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds all dependency checks together.
const readinessTimeout = 3 * time.Second

// HealthStatus is the readiness report.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Uptime float64           `json:"uptime_seconds"`
}

// HealthLive reports that the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady pings every dependency and answers 503 if any fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := HealthStatus{
		Status: "ready",
		Checks: make(map[string]string, len(h.deps.Checks)),
		Uptime: time.Since(h.startTime).Seconds(),
	}
	code := http.StatusOK
	for _, c := range h.deps.Checks {
		if err := c.Check(ctx); err != nil {
			status.Checks[c.Name] = "unavailable"
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[c.Name] = "ok"
	}
	respondJSON(w, r, code, status)
}
