package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quest_messaging_publish_failures_total",
	Help: "Total number of quest events that could not be published to RabbitMQ.",
})
