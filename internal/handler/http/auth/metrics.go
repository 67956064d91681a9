package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of an admin API token check.
const (
	outcomeAllowed   = "allowed"
	outcomeForbidden = "forbidden"
	outcomeInvalid   = "invalid_token"
)

var (
	tokenChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_admin_token_checks_total",
			Help: "Admin API token checks by role, method and outcome",
		},
		[]string{"role", "method", "outcome"},
	)

	tokenCheckSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relayfeed_admin_token_check_seconds",
			Help:    "Time spent verifying a token and its role",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

// observeCheck records one token check. An invalid token has no trustworthy role.
func observeCheck(role, method, outcome string, started time.Time) {
	if outcome == outcomeInvalid {
		role = "none"
	}
	tokenChecks.WithLabelValues(role, method, outcome).Inc()
	tokenCheckSeconds.Observe(time.Since(started).Seconds())
}
