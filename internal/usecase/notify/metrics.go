package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for notices that never reached a channel.
const (
	dropPoolFull    = "pool_full"
	dropCircuitOpen = "circuit_open"
	dropShutdown    = "shutdown"
	dropPanic       = "panic"
)

var (
	noticesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_notices_sent_total",
			Help: "Dispatch notices sent per channel and result",
		},
		[]string{"channel", "result"}, // success | failure
	)

	noticeSendSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayfeed_notice_send_seconds",
			Help:    "Time a channel took to accept a notice",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	noticesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_notices_dropped_total",
			Help: "Dispatch notices dropped before reaching a channel",
		},
		[]string{"channel", "reason"},
	)

	noticesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_notices_in_flight",
			Help: "Notice sends currently running",
		},
	)

	channelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_notify_channels_enabled",
			Help: "Configured notification channels",
		},
	)
)

func observeSend(channel string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	noticesSent.WithLabelValues(channel, result).Inc()
	noticeSendSeconds.WithLabelValues(channel).Observe(d.Seconds())
}

func observeDrop(channel, reason string) {
	noticesDropped.WithLabelValues(channel, reason).Inc()
}
