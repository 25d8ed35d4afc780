// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	IngestBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_ingest_batches_total",
			Help: "Total number of telemetry batches by outcome",
		},
		[]string{"kind", "outcome"}, // outcome: success, validation, insert_mismatch, transaction, error
	)

	IngestReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_ingest_readings_total",
			Help: "Total number of submitted readings by disposition",
		},
		[]string{"kind", "disposition"}, // inserted, duplicate, future
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aeolus_ingest_duration_seconds",
			Help:    "Duration of batch ingestion from receipt to commit",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	// Points Metrics
	PointsAwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aeolus_points_awarded_total",
			Help: "Total number of points credited to balances",
		},
	)

	PointsFrozen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aeolus_points_frozen_total",
			Help: "Total number of awards skipped because the balance is frozen",
		},
	)

	// Identity Metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"authenticator", "outcome"}, // outcome: success, unavailable, invalid, expired, revoked, error
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"action", "result"}, // result: allowed, denied
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aeolus_db_query_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_db_query_errors_total",
			Help: "Total number of storage operation errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aeolus_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aeolus_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// MQTT Bridge Metrics
	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_mqtt_messages_total",
			Help: "Total number of MQTT telemetry messages by outcome",
		},
		[]string{"kind", "outcome"}, // accepted, throttled, rejected, failed
	)

	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aeolus_mqtt_connected",
			Help: "Whether the MQTT bridge is connected (1) or not (0)",
		},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"topic", "result"}, // result: success, failure, rejected
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_events_consumed_total",
			Help: "Total number of domain events consumed by the activity log",
		},
		[]string{"topic", "result"}, // result: processed, invalid
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeolus_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aeolus_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aeolus_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a storage operation metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// IngestResult summarises one batch for RecordIngest.
type IngestResult struct {
	Kind       string
	Outcome    string
	Inserted   int
	Duplicates int
	Future     int
	Duration   time.Duration
}

// RecordIngest records the counters for one batch submission.
func RecordIngest(r IngestResult) {
	IngestBatches.WithLabelValues(r.Kind, r.Outcome).Inc()
	IngestDuration.WithLabelValues(r.Kind).Observe(r.Duration.Seconds())
	if r.Inserted > 0 {
		IngestReadings.WithLabelValues(r.Kind, "inserted").Add(float64(r.Inserted))
	}
	if r.Duplicates > 0 {
		IngestReadings.WithLabelValues(r.Kind, "duplicate").Add(float64(r.Duplicates))
	}
	if r.Future > 0 {
		IngestReadings.WithLabelValues(r.Kind, "future").Add(float64(r.Future))
	}
}

// RecordCircuitBreakerTransition updates the state gauge and transition counter.
// States follow gobreaker: closed, half-open, open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
