package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	placementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conductor_scheduler_placement_duration_seconds",
		Help:    "Time spent building an allocation plan",
		Buckets: prometheus.DefBuckets,
	})

	placementFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_scheduler_placement_failures_total",
		Help: "Allocation plans that could not be built",
	}, []string{"strategy"})
)
