package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_dispatch_passes_total",
			Help: "Feed passes by result",
		},
		[]string{"result"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relayfeed_dispatch_pass_duration_seconds",
			Help:    "Duration of a full feed pass",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 1800, 3600},
		},
	)

	entriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_dispatch_entries_total",
			Help: "Feed entries by pipeline stage (seen, matched, deduplicated, dispatched, skipped)",
		},
		[]string{"stage"},
	)

	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_dispatch_outcomes_total",
			Help: "Dispatch outcomes (success, failed, deferred)",
		},
		[]string{"outcome"},
	)

	entryPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relayfeed_dispatch_entry_panics_total",
			Help: "Panics recovered while processing a single feed entry",
		},
	)

	stateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_pipeline_state",
			Help: "Current pipeline state (0=idle 1=polling 2=matching 3=dispatching 4=sleeping)",
		},
	)

	enabledGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_pipeline_enabled",
			Help: "1 when the pipeline is enabled, 0 otherwise",
		},
	)
)

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
