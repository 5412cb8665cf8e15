package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erde_pipeline_stage_duration_seconds",
			Help:    "Captures per-stage pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erde_pipeline_stage_failures_total",
			Help: "Count of pipeline stage failures by stage",
		},
		[]string{"stage"},
	)
)
