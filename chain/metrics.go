package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erde_chain_rpc_retries_total",
			Help: "Count of RPC read retries by operation",
		},
		[]string{"op"},
	)
	rpcLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "erde_chain_rpc_latency_milliseconds",
			Help:    "Captures RPC read latency in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
	)
)
