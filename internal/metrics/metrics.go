// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package metrics holds the Prometheus instrumentation for the recommender:
// replica queries, event consumption, catalog backfill, circuit breakers,
// model training and the recommendation API. All collectors register on the
// default registry and are served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Replica store
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replica_query_duration_seconds",
			Help:    "Duration of replica store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_query_errors_total",
			Help: "Total number of replica store query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Event consumption
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Events consumed per topic and outcome",
		},
		[]string{"topic", "event_type", "outcome"}, // outcome: applied, skipped, failed, duplicate
	)

	EventHandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_handle_duration_seconds",
			Help:    "Time spent applying a single event to the replica",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"topic"},
	)

	ConsumerReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_reconnects_total",
			Help: "Number of times a consumer reconnected after a transport failure",
		},
		[]string{"topic"},
	)

	ConsumerConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consumer_connected",
			Help: "Whether the consumer currently holds a live bus connection (1) or is backing off (0)",
		},
		[]string{"topic"},
	)

	DedupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_operations_total",
			Help: "Redelivery dedup store operations by outcome",
		},
		[]string{"operation", "outcome"}, // check: hit, miss, error; mark: success, error
	)

	// Catalog backfill
	BackfillTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_backfill_total",
			Help: "Catalog backfill attempts by outcome",
		},
		[]string{"outcome"}, // success, not_found, failure, rejected
	)

	BackfillDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_backfill_duration_seconds",
			Help:    "Latency of catalog backfill requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Model training
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_training_runs_total",
			Help: "Model training runs by outcome",
		},
		[]string{"outcome"}, // success, failure, skipped
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_training_duration_seconds",
			Help:    "Wall time of a model training run",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		},
	)

	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_trained_users",
			Help: "Users known to the active model snapshot",
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_trained_items",
			Help: "Items known to the active model snapshot",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_snapshot_version",
			Help: "Version counter of the active model snapshot",
		},
	)

	// Recommendation API
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Recommendation requests by operation and outcome",
		},
		[]string{"operation", "outcome"}, // ok, empty, invalid, error
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_request_duration_seconds",
			Help:    "Recommendation request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RecommendCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates",
			Help:    "Candidate set size before pagination",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"operation"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordDBQuery records a replica query. Error labels are truncated to 50 chars.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordEvent records the outcome of one consumed event.
func RecordEvent(topic, eventType, outcome string, duration time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	EventsConsumed.WithLabelValues(topic, eventType, outcome).Inc()
	EventHandleDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordReconnect counts a reconnect and marks the consumer as disconnected.
func RecordReconnect(topic string) {
	ConsumerReconnects.WithLabelValues(topic).Inc()
	ConsumerConnected.WithLabelValues(topic).Set(0)
}

// SetConsumerConnected flips the connection gauge for topic.
func SetConsumerConnected(topic string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	ConsumerConnected.WithLabelValues(topic).Set(v)
}

// RecordDedup records a dedup store operation.
func RecordDedup(operation, outcome string) {
	DedupOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordBackfill records a catalog lookup.
func RecordBackfill(outcome string, duration time.Duration) {
	BackfillTotal.WithLabelValues(outcome).Inc()
	BackfillDuration.Observe(duration.Seconds())
}

// RecordTraining records a training run and, on success, the snapshot shape.
func RecordTraining(duration time.Duration, users, items int, version int64, err error) {
	if err != nil {
		TrainingRuns.WithLabelValues("failure").Inc()
		return
	}
	TrainingRuns.WithLabelValues("success").Inc()
	TrainingDuration.Observe(duration.Seconds())
	ModelUsers.Set(float64(users))
	ModelItems.Set(float64(items))
	ModelVersion.Set(float64(version))
}

// RecordTrainingSkipped counts a training request dropped because one was in flight.
func RecordTrainingSkipped() {
	TrainingRuns.WithLabelValues("skipped").Inc()
}

// RecordRecommendation records one recommendation operation.
func RecordRecommendation(operation, outcome string, candidates int, duration time.Duration) {
	RecommendRequests.WithLabelValues(operation, outcome).Inc()
	RecommendDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if candidates >= 0 {
		RecommendCandidates.WithLabelValues(operation).Observe(float64(candidates))
	}
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
