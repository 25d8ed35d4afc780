// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package api exposes the HTTP interface of Aeolus on a chi router.

Every JSON response uses the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "data": null, "error": {"code": "VALIDATION_FAILED", "message": "..."}, "metadata": {...}}

The client-credentials token endpoint is the exception: it answers in the
OAuth 2.0 token response shape so standard client libraries can use it.

# Routes

	GET    /api/v1/health                              liveness
	GET    /api/v1/health/ready                        pings telemetry and ledger storage
	GET    /metrics                                    prometheus

	POST   /api/v1/auth/google                         Google ID token -> session JWT
	POST   /api/v1/auth/logout                         revoke the presented session
	POST   /api/v1/auth/token                          client_credentials grant

	GET    /api/v1/users/me
	POST   /api/v1/weather-stations/{streamID}/data    submit a batch (write:telemetry)
	GET    /api/v1/weather-stations/{streamID}/data    read back (read:telemetry)
	POST   /api/v1/kite-players/{streamID}/data
	GET    /api/v1/kite-players/{streamID}/data
	GET    /api/v1/points/me                           (read:points)
	GET    /api/v1/points/me/transactions
	GET    /api/v1/points/leaderboard
	GET    /api/v1/api-keys
	POST   /api/v1/api-keys
	DELETE /api/v1/api-keys/{id}
	GET    /api/v1/clients
	POST   /api/v1/clients
	PUT    /api/v1/admin/points/{userID}/freeze        role admin
	GET    /api/v1/admin/points/{userID}/reconcile     role admin

Authenticated routes run auth.Middleware.RequireAuth, then the scope check,
then the Casbin policy in internal/authz.

# Errors

respondError maps domain errors to status codes in one place:

	validation                        400 VALIDATION_FAILED
	malformed body                    400 BAD_REQUEST
	identity failure                  401 UNAUTHORIZED
	missing scope or policy deny      403 FORBIDDEN
	unknown resource                  404 NOT_FOUND
	identity provider unavailable     503 SERVICE_UNAVAILABLE
	telemetry insert count mismatch   500 TELEMETRY_INSERT_MISMATCH
	ledger transaction failure        500 TRANSACTION_FAILED
	anything else                     500 INTERNAL_ERROR
*/
package api
