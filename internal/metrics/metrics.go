package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Signaling ───────────────────────────────────────────────────────────────

	SignalingCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "commands_total",
		Help:      "Signaling commands received, labelled by kind.",
	}, []string{"kind"})

	SignalingDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "dropped_total",
		Help:      "Signaling commands dropped without effect, labelled by kind and reason.",
	}, []string{"kind", "reason"})

	SignalingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "errors_total",
		Help:      "call:error events sent to originators, labelled by code.",
	}, []string{"code"})

	CallTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "call_transitions_total",
		Help:      "Persisted call status changes, labelled by resulting status.",
	}, []string{"status"})

	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "events_delivered_total",
		Help:      "Events handed to local connections, labelled by outcome (sent, dropped).",
	}, []string{"outcome"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatforia",
		Subsystem: "signaling",
		Name:      "ws_connections",
		Help:      "Live WebSocket connections on this instance.",
	})

	// ─── Worker pool ─────────────────────────────────────────────────────────────

	PoolTasksInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chatforia",
		Subsystem: "pool",
		Name:      "tasks_inflight",
		Help:      "Tasks currently executing on a worker.",
	}, []string{"pool"})

	PoolQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chatforia",
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Tasks waiting for an idle worker.",
	}, []string{"pool"})

	PoolTasksSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "pool",
		Name:      "tasks_settled_total",
		Help:      "Settled tasks, labelled by outcome (ok, error, fault, closed).",
	}, []string{"pool", "outcome"})

	PoolWorkersSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatforia",
		Subsystem: "pool",
		Name:      "workers_spawned_total",
		Help:      "Workers started by the pool.",
	}, []string{"pool"})

	PoolTaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatforia",
		Subsystem: "pool",
		Name:      "task_duration_seconds",
		Help:      "Execution time of a task on its worker.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"pool"})
)
