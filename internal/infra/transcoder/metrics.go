package transcoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_transcode_submissions_total",
			Help: "Transcode submissions by terminal outcome",
		},
		[]string{"outcome"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_transcode_attempts_total",
			Help: "Individual HTTP attempts made against the transcode service",
		},
		[]string{"result"},
	)

	submissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relayfeed_transcode_submission_duration_seconds",
			Help:    "Wall time of a transcode submission including retries",
			Buckets: []float64{1, 5, 30, 60, 300, 600, 1200, 1800, 3600},
		},
	)

	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_transcode_probes_total",
			Help: "Availability probes by result",
		},
		[]string{"result"},
	)
)
