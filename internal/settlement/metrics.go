package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_settlement_deductions_total",
			Help: "Total number of token deductions, partitioned by backend and status.",
		},
		[]string{"backend", "status"},
	)
	deductedTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_settlement_deducted_tokens_total",
			Help: "Total number of tokens deducted.",
		},
		[]string{"backend"},
	)
)
