package ubus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tspanel",
		Name:      "rpc_calls_total",
		Help:      "RPC calls made to rpcd, by object, method and outcome.",
	}, []string{"object", "method", "outcome"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tspanel",
		Name:      "rpc_duration_seconds",
		Help:      "Latency of RPC calls made to rpcd.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"object", "method"})
)

func observeCall(object, method string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	callsTotal.WithLabelValues(object, method, outcome).Inc()
	callDuration.WithLabelValues(object, method).Observe(d.Seconds())
}
