// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package ingest coordinates a telemetry batch submission from receipt to
// committed points.
//
// A batch moves through these states:
//
//	RECEIVED -> TELEMETRY_DEDUPED -> TELEMETRY_PERSISTED -> TX_OPEN
//	         -> SCORED -> LEDGER_COMMITTED -> TX_COMMITTED
//
// Telemetry is persisted in its own store before the ledger transaction
// opens, so the two writes are not atomic. If the ledger transaction fails,
// the readings stay stored and the points are not credited. Resubmitting the
// same batch is safe: stored readings are recognised as duplicates and the
// scoring pass runs again against the unchanged cursor.
package ingest
