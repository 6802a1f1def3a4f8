package panel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tspanel",
		Name:      "connected",
		Help:      "Whether the daemon reported itself connected in the last applied status.",
	})

	killswitchGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tspanel",
		Name:      "killswitch_enabled",
		Help:      "Whether the killswitch was enabled in the last applied status.",
	})

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tspanel",
		Name:      "polls_total",
		Help:      "Status polls, by outcome.",
	}, []string{"outcome"})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tspanel",
		Name:      "actions_total",
		Help:      "User actions, by action and outcome.",
	}, []string{"action", "outcome"})
)

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}
