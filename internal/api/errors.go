// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/authz"
	"github.com/tomtom215/aeolus/internal/ingest"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/validation"
)

// Error codes.
const (
	CodeValidationFailed  = validation.CodeValidationFailed
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeInsertMismatch    = "TELEMETRY_INSERT_MISMATCH"
	CodeTransactionFailed = "TRANSACTION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrMalformedBody marks a request body that is not valid JSON for the
// endpoint.
var ErrMalformedBody = errors.New("malformed request body")

var errRouteNotFound = errors.New("route not found")

// classify maps err to a status and API error. Messages never include the
// wrapped storage error.
func classify(err error) (int, *models.APIError) {
	var ingestVerr *ingest.ValidationError
	var verr *validation.RequestValidationError
	var mismatch *ingest.InsertionMismatchError

	switch {
	case errors.As(err, &ingestVerr):
		return http.StatusBadRequest, validationAPIError(ingestVerr.Details)
	case errors.As(err, &verr):
		return http.StatusBadRequest, validationAPIError(verr)
	case errors.Is(err, ingest.ErrValidation):
		return http.StatusBadRequest, &models.APIError{Code: CodeValidationFailed, Message: err.Error()}
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, &models.APIError{Code: CodeBadRequest, Message: err.Error()}
	case errors.Is(err, auth.ErrNotASession):
		return http.StatusBadRequest, &models.APIError{Code: CodeBadRequest, Message: "Logout requires a session token"}
	case errors.Is(err, auth.ErrInsufficientScope):
		return http.StatusForbidden, &models.APIError{Code: CodeForbidden, Message: "Credential lacks the required scope"}
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, &models.APIError{Code: CodeForbidden, Message: "Insufficient permissions"}
	case errors.Is(err, auth.ErrAuthenticatorUnavailable):
		return http.StatusServiceUnavailable, &models.APIError{Code: CodeUnavailable, Message: "Authentication service unavailable"}
	case errors.Is(err, auth.ErrExpiredCredentials):
		return http.StatusUnauthorized, &models.APIError{Code: CodeUnauthorized, Message: "Credentials expired"}
	case errors.Is(err, auth.ErrRevokedCredentials):
		return http.StatusUnauthorized, &models.APIError{Code: CodeUnauthorized, Message: "Credentials revoked"}
	case auth.IsIdentityFailure(err):
		return http.StatusUnauthorized, &models.APIError{Code: CodeUnauthorized, Message: "Authentication required"}
	case errors.Is(err, accounts.ErrNotFound), errors.Is(err, errRouteNotFound):
		return http.StatusNotFound, &models.APIError{Code: CodeNotFound, Message: "Resource not found"}
	case errors.As(err, &mismatch):
		return http.StatusInternalServerError, &models.APIError{
			Code:    CodeInsertMismatch,
			Message: "Telemetry was only partially stored; retry the batch",
			Details: map[string]interface{}{"expected": mismatch.Expected, "inserted": mismatch.Inserted},
		}
	case errors.Is(err, ingest.ErrTransaction):
		return http.StatusInternalServerError, &models.APIError{
			Code:    CodeTransactionFailed,
			Message: "Points could not be recorded; telemetry may already be stored, retry the batch",
		}
	default:
		return http.StatusInternalServerError, &models.APIError{Code: CodeInternal, Message: "Internal server error"}
	}
}

func validationAPIError(verr *validation.RequestValidationError) *models.APIError {
	apiErr := verr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
