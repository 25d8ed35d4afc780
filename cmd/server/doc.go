// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Command server runs the Aeolus telemetry and points backend.

Startup order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, json or console
 3. Telemetry store: DuckDB
 4. Ledger database: gorm on sqlite or postgres, auto-migrated
 5. Events: watermill publisher (gochannel or NATS JetStream) and the activity log consumer
 6. Identity: session and client JWTs, device API keys, optional Google sign-in
 7. Authorization: Casbin policy
 8. Supervisor tree: HTTP server, optional MQTT bridge, revocation store GC

Common environment variables:

	HTTP_PORT=8080
	JWT_SECRET=<32+ chars>
	DUCKDB_PATH=/data/aeolus-telemetry.duckdb
	LEDGER_DRIVER=sqlite                 # or postgres
	LEDGER_DSN=/data/aeolus.db
	POINTS_PER_HOUR=1
	POINTS_PER_DAY=5
	POINTS_TIMEZONE=Europe/Berlin
	GOOGLE_AUTH_ENABLED=true
	GOOGLE_CLIENT_ID=<oauth client id>
	SESSION_STORE_PATH=/data/sessions    # badger; empty keeps revocations in memory
	ADMIN_USER_IDS=<user id>,<user id>
	MQTT_ENABLED=true
	MQTT_BROKER=tcp://mosquitto:1883
	EVENTS_ENABLED=true
	EVENTS_BACKEND=nats
	NATS_URL=nats://nats:4222

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests for up to 10 seconds before the stores are closed.
*/
package main
