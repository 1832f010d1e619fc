package quest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_operations_total",
			Help: "Total number of quest engine operations, partitioned by operation and error kind.",
		},
		[]string{"operation", "result"},
	)
	puzzlesSolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_puzzles_solved_total",
			Help: "Total number of solved puzzles.",
		},
		[]string{"puzzle"},
	)
	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quest_live_sessions",
			Help: "Number of live quest sessions held by the manager.",
		},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
