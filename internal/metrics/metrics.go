package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingress Metrics
var (
	// EventsNormalizedTotal tracks normalized events by kind
	EventsNormalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_events_normalized_total",
			Help: "Total canonical events produced by the normalizer, by kind",
		},
		[]string{"kind"},
	)

	// EventsUnrecognizedTotal tracks raw events dropped as unrecognized
	EventsUnrecognizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingress_events_unrecognized_total",
			Help: "Raw upstream events dropped because their kind is unknown",
		},
	)

	// UpstreamReconnectsTotal tracks upstream websocket reconnect attempts
	UpstreamReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingress_upstream_reconnects_total",
			Help: "Upstream connection attempts after a disconnect",
		},
	)
)

// Streak Aggregator Metrics
var (
	// StreaksCompletedTotal tracks aggregated gift emissions
	StreaksCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_completed_total",
			Help: "Gift streaks collapsed into a single aggregated event",
		},
	)

	// StreaksForceFlushedTotal tracks stale streak buffers flushed by age
	StreaksForceFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_force_flushed_total",
			Help: "Streak buffers flushed because they exceeded the staleness window",
		},
	)

	// StreaksPending tracks in-progress streak buffers
	StreaksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streak_pending_buffers",
			Help: "Streak buffers currently held open",
		},
	)
)

// Resolver Metrics
var (
	// CommandsResolvedTotal tracks resolved commands by rule kind
	CommandsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_commands_total",
			Help: "Resolved commands emitted, by rule kind",
		},
		[]string{"rule_kind"},
	)

	// CooldownSuppressedTotal tracks rule firings suppressed by cooldown
	CooldownSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cooldown_suppressed_total",
			Help: "Rule matches suppressed because the cooldown window had not elapsed",
		},
	)
)

// Dispatcher Metrics
var (
	// ActuatorQueueDepth tracks current actuator queue depth
	ActuatorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_actuator_queue_depth",
			Help: "Current actuator command queue depth",
		},
	)

	// ActuatorDroppedTotal tracks commands dropped by the overflow policy
	ActuatorDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_actuator_dropped_total",
			Help: "Commands dropped from the actuator queue (drop-oldest on overflow)",
		},
	)

	// BatchFlushesTotal tracks durable-log batch flushes by status
	BatchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_batch_flushes_total",
			Help: "Durable-log batch flushes by status",
		},
		[]string{"status"},
	)

	// BatchBufferedRecords tracks records waiting for the next flush
	BatchBufferedRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_batch_buffered_records",
			Help: "Durable-log records buffered for the next flush",
		},
	)
)

// Actuator Metrics
var (
	// DeviceConnected reports device connectivity (1=connected, 0=disconnected)
	DeviceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "actuator_device_connected",
			Help: "Actuator device connectivity (1=connected, 0=disconnected)",
		},
	)

	// DeviceCommandsTotal tracks commands sent to the device by outcome
	DeviceCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actuator_device_commands_total",
			Help: "Commands written to the device, by outcome",
		},
		[]string{"outcome"},
	)

	// EmergencyStopsTotal tracks emergency stop activations
	EmergencyStopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "actuator_emergency_stops_total",
			Help: "Emergency stop commands issued",
		},
	)

	// HeartbeatTimeoutsTotal tracks device heartbeat timeouts
	HeartbeatTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "actuator_heartbeat_timeouts_total",
			Help: "Device heartbeat timeouts that flipped status to disconnected",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency, by query name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Database query errors, by query name",
		},
		[]string{"query"},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks Redis operations by command and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Redis operations, by command and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency by command
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency, by command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks failed Redis connection attempts
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Failed Redis connection attempts",
		},
	)

	// CircuitBreakerState reports the breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// CircuitBreakerStateChanges tracks breaker transitions by new state
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions, by component and new state",
		},
		[]string{"component", "state"},
	)
)

// Session Metrics
var (
	// SessionsStartedTotal tracks session starts by kind (new/continued)
	SessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_started_total",
			Help: "Session starts, by kind (new or continued)",
		},
		[]string{"kind"},
	)

	// SessionsEndedTotal tracks session ends by trigger (manual/timeout)
	SessionsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_ended_total",
			Help: "Session ends, by trigger",
		},
		[]string{"trigger"},
	)
)
