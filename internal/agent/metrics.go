package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpilot_runs_total",
		Help: "Completed agent runs by terminal status.",
	}, []string{"status"})

	triggersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentpilot_triggers_rejected_total",
		Help: "Triggers rejected because a run was already in flight.",
	})

	dispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentpilot_dispatch_duration_seconds",
		Help:    "Latency of article dispatch to the publishing channel.",
		Buckets: prometheus.DefBuckets,
	})
)
