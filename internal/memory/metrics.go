package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mem0",
		Subsystem: "memory",
		Name:      "events_total",
		Help:      "Memory changes applied, by event.",
	},
	[]string{"event"},
)
