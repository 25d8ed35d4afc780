// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

/*
Package events publishes domain events after a batch commits.

Two events exist:

	<prefix>.telemetry.ingested   one per committed batch
	<prefix>.points.awarded       one per batch with a non-zero award

The transport is Watermill. The default backend is an in-process gochannel
pub/sub; setting events.backend=nats publishes to NATS JetStream through
watermill-nats. Every publish passes through a gobreaker circuit breaker so
a dead broker costs one fast failure per call instead of a connect timeout.

Publishing is fire-and-forget from the caller's point of view: the ingestion
coordinator logs publish errors and never fails a request because of them.

ActivityLog is the in-tree consumer. It runs as a supervised service,
subscribes to both topics (a durable queue group on NATS), logs each event
and counts it in aeolus_events_consumed_total. Payloads that do not decode
are counted as invalid and acked.
*/
package events
