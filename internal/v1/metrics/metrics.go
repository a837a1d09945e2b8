// Package metrics declares the Prometheus collectors exported by the
// server, following the teacher's promauto + namespace/subsystem/name
// convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Naming convention: namespace_subsystem_name
// - namespace: shoutwars (application-level grouping)
// - subsystem: room, sync, rate_limit, circuit_breaker, redis (feature-level grouping)
// - name: specific metric (rooms_active, requests_total, etc.)

var (
	// RoomsActive tracks the current number of live rooms.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shoutwars",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms",
	})

	// UsersActive tracks the current number of users across all rooms.
	UsersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shoutwars",
		Subsystem: "room",
		Name:      "users_active",
		Help:      "Current number of users across all rooms",
	})

	// RoomOperations tracks create/join/start requests by outcome.
	RoomOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "room",
		Name:      "operations_total",
		Help:      "Total room operations processed, by kind and status",
	}, []string{"operation", "status"})

	// SyncRequests tracks /v1/room/sync calls by outcome.
	SyncRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "sync",
		Name:      "requests_total",
		Help:      "Total sync requests processed, by status",
	}, []string{"status"})

	// SyncBarrierWait tracks time spent blocked in the per-tick barrier.
	SyncBarrierWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shoutwars",
		Subsystem: "sync",
		Name:      "barrier_wait_seconds",
		Help:      "Time spent waiting on the room sync barrier",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .2, .5},
	})

	// SyncRecordsLive tracks how many sync records a room is currently retaining.
	SyncRecordsLive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shoutwars",
		Subsystem: "sync",
		Name:      "records_live",
		Help:      "Number of sync records currently retained per room",
	}, []string{"room_id"})

	// AuthRejections tracks bearer-secret mismatches.
	AuthRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "auth",
		Name:      "rejections_total",
		Help:      "Total requests rejected for an invalid bearer secret",
	})

	// CircuitBreakerState tracks the current state of the event-bus circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shoutwars",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis operations performed by the event bus.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shoutwars",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations performed by the event bus.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shoutwars",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)
