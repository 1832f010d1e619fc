package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_http_logins_total",
		Help: "Total number of successful wallet logins.",
	})

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_http_errors_total",
			Help: "Total number of API error responses by error kind.",
		},
		[]string{"kind"},
	)

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quest_ws_connections",
		Help: "Number of open WebSocket event streams.",
	})
)
