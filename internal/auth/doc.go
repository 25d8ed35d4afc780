// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package auth resolves request credentials to the author user ID that
telemetry and points are attributed to.

Every credential scheme implements Authenticator. MultiAuthenticator tries
them in priority order:

	10  APIKeyAuthenticator     aeolus_key_... (Authorization bearer or X-API-Key)
	20  TokenAuthenticator      session JWT (bearer or aeolus_session cookie)
	25  TokenAuthenticator      client-credentials access JWT
	30  GoogleAuthenticator     Google ID token presented directly

An authenticator that does not recognise the credential returns
ErrNoCredentials and the chain moves on. A recognised but bad credential
stops the chain with ErrInvalidCredentials, ErrExpiredCredentials or
ErrRevokedCredentials.

Session and client tokens are HS256 JWTs signed by TokenManager. Logging out
stores the token's jti in a RevocationStore (BadgerDB with per-key TTL, or
memory) until the token would have expired.

API keys are stored as bcrypt(sha256(key)). APIKeyManager keeps a short-lived
LRU of digests that already matched, so a station posting every few seconds
is not bcrypt-bound; revocation and expiry are still read on each request.
*/
package auth
