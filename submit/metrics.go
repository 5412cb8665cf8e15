package submit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rootsSubmitted = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "erde_merkle_roots_submitted_total",
		Help: "Count of merkle roots confirmed on chain",
	},
)
