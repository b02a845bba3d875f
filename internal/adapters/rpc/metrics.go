package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "treb_anvil_rpc_call_duration_seconds",
		Help:    "Duration of JSON-RPC calls to anvil nodes",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"node", "method", "status"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treb_anvil_rpc_calls_total",
		Help: "Total JSON-RPC calls made to anvil nodes",
	}, []string{"node", "method", "status"})

	HandshakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treb_anvil_handshakes_total",
		Help: "Connection handshakes by outcome",
	}, []string{"outcome"})
)
