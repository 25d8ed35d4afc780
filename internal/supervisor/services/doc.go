// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package services adapts blocking servers to the suture.Service
// signature. Components that already expose Serve(ctx) error, such as the
// MQTT bridge and the badger revocation store, are added to the tree
// directly.
package services
