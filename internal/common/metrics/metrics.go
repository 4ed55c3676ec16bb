// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_processed_total",
			Help: "Total number of chat messages processed by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_dispatch_duration_seconds",
			Help: "Duration of entity adapter dispatch in seconds",
		},
		[]string{"entity_type"},
	)

	ParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "chat_parse_duration_seconds",
			Help: "Duration of message parsing in seconds",
		},
	)

	DisambiguationRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_disambiguation_requests_total",
			Help: "Total number of clarification prompts issued",
		},
	)

	DispatchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_dispatch_retries_total",
			Help: "Total number of adapter retry attempts",
		},
		[]string{"entity_type"},
	)

	DegradeQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_degrade_queue_depth",
			Help: "Number of degraded writes queued per entity type",
		},
		[]string{"entity_type"},
	)
)
