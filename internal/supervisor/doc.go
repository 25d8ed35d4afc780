// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package supervisor runs the long-lived Aeolus services under suture v4.

	RootSupervisor ("aeolus")
	├── "storage-layer"
	│   └── revocation-gc       (badger value log GC, when session_store_path is set)
	├── "ingest-layer"
	│   └── mqtt-bridge         (when mqtt.enabled)
	└── "api-layer"
	    └── http-server

Crashed services restart with backoff. Supervisor events are logged through
sutureslog using the zerolog-backed slog logger from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}
*/
package supervisor
