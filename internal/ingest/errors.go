// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ingest

import (
	"errors"
	"fmt"

	"github.com/tomtom215/aeolus/internal/validation"
)

var (
	// ErrValidation marks a batch rejected before any storage access.
	ErrValidation = errors.New("invalid telemetry batch")

	// ErrInsertionMismatch marks a telemetry insert that wrote a different
	// number of rows than requested. No ledger transaction was opened.
	ErrInsertionMismatch = errors.New("telemetry insertion count mismatch")

	// ErrTransaction marks a failure inside the ledger transaction. The
	// transaction was rolled back; telemetry persisted earlier is kept.
	ErrTransaction = errors.New("points transaction failed")

	// ErrTelemetryStore marks a failure reading or writing telemetry before
	// the ledger transaction.
	ErrTelemetryStore = errors.New("telemetry store failure")
)

// ValidationError carries the field-level details of a rejected batch.
type ValidationError struct {
	Details *validation.RequestValidationError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.Details.Error())
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsertionMismatchError reports the expected and actual insert counts.
type InsertionMismatchError struct {
	Expected int
	Inserted int64
}

func (e *InsertionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, inserted %d", ErrInsertionMismatch, e.Expected, e.Inserted)
}

func (e *InsertionMismatchError) Is(target error) bool {
	return target == ErrInsertionMismatch
}

func newValidationError(field, tag, message string, value interface{}) error {
	return &ValidationError{Details: validation.NewFieldError(field, tag, message, value)}
}

func transactionError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransaction, step, err)
}
