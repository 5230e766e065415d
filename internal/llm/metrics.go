package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mem0",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Completed LLM generate calls by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mem0",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM generate latency including retries.",
			Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)
)

func observe(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(provider, outcome).Inc()
	requestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
