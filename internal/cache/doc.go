// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package cache provides a bounded, thread-safe LRU cache with lazy TTL
expiration.

The auth package uses it to remember API key secrets that already passed
bcrypt verification, so devices that upload every few seconds over HTTP
or MQTT pay the hashing cost once per TTL rather than once per request.
Revocation and expiry are still read from the store on every request;
the cache only short-circuits the hash comparison.

Usage:

	c := cache.NewLRU[string](4096, 5*time.Minute)
	c.Add("digest", "bcrypt-hash")
	if v, ok := c.Get("digest"); ok {
		...
	}

All operations are O(1). Expired entries are dropped when read or when
CleanupExpired runs.
*/
package cache
