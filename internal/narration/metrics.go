package narration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	narrationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_narration_requests_total",
			Help: "Total number of narration requests, partitioned by purpose and outcome.",
		},
		[]string{"purpose", "source"},
	)
	narrationCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_narration_cache_hits_total",
			Help: "Total number of narration requests served from the response cache.",
		},
		[]string{"purpose"},
	)
	narrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quest_narration_request_duration_seconds",
			Help:    "Histogram of model request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "purpose"},
	)
	narrationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_narration_tokens_total",
			Help: "Total number of model tokens reported by providers.",
		},
		[]string{"model"},
	)
)
