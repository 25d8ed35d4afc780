// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package metrics defines the Prometheus collectors exported at /metrics.

Collectors are registered on the default registry at package init through
promauto, so callers record directly:

	metrics.IngestBatches.WithLabelValues("weather_station", "success").Inc()

# Available Metrics

Ingestion:
  - aeolus_ingest_batches_total{kind,outcome}
  - aeolus_ingest_readings_total{kind,disposition}
  - aeolus_ingest_duration_seconds{kind}

Points:
  - aeolus_points_awarded_total
  - aeolus_points_frozen_total

Identity:
  - aeolus_auth_attempts_total{authenticator,outcome}

Storage, HTTP, MQTT, events and circuit breakers each have their own
group; see metrics.go.
*/
package metrics
