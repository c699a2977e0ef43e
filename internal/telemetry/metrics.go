package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики жизненного цикла executions. Регистрируются в default
// registry: promhttp в main отдаёт их без дополнительной сборки.
var (
	// ExecutionsStarted — запущенные executions по pipeline.
	ExecutionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_executions_started_total",
		Help: "Executions that entered the Launching state",
	}, []string{"pipeline"})

	// ExecutionsFinished — завершённые executions по терминальному статусу.
	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_executions_finished_total",
		Help: "Executions that reached a terminal state",
	}, []string{"pipeline", "status"})

	// ExecutionDuration — длительность execution от запуска до терминала.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conductor_execution_duration_seconds",
		Help:    "Wall-clock duration of finished executions",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	// CheckpointsCreated — созданные и верифицированные checkpoints.
	CheckpointsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conductor_checkpoints_created_total",
		Help: "Checkpoints written and verified",
	})

	// NodesUnresponsive — узлы, переведённые в UNRESPONSIVE.
	NodesUnresponsive = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conductor_nodes_unresponsive_total",
		Help: "Nodes degraded to unresponsive after missing heartbeats",
	})
)
