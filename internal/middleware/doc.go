// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package middleware holds the infrastructure middleware shared by every
// route: request IDs, access logging, Prometheus instrumentation and
// security headers. All of them use the chi signature
// func(http.Handler) http.Handler.
//
// The router installs them outermost first:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.AccessLog)
//	r.Use(middleware.PrometheusMetrics)
//	r.Use(middleware.SecurityHeaders)
//
// Authentication and authorization live in internal/auth and
// internal/authz.
package middleware
