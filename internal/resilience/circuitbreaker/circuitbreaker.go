// Package circuitbreaker guards relayfeed's three unreliable dependencies: the release
// feed, the transcode service and the ledger database. Each gets its own breaker so an
// outage of one never short-circuits calls to the others.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayfeed_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_circuit_breaker_rejections_total",
			Help: "Calls refused without reaching the dependency",
		},
		[]string{"name"},
	)
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	// Name labels logs and the state gauge.
	Name string

	// MaxRequests may pass while half-open; that many successes close the breaker.
	MaxRequests uint32

	// Interval clears the closed-state counts. 0 never clears them.
	Interval time.Duration

	// Timeout is the open period before the breaker goes half-open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker after that many failures in a row.
	// When 0, the ratio rule below applies instead.
	ConsecutiveFailures uint32

	// FailureThreshold trips once TotalFailures/Requests reaches it, after MinRequests.
	FailureThreshold float64
	MinRequests      uint32

	// IsSuccessful classifies errors that must not count as failures.
	// nil counts every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// FeedFetchConfig trips on a mostly failing feed. Polls are frequent and cheap, so the
// ratio rule over a minute smooths out the odd 502 from the feed host.
func FeedFetchConfig() Config {
	return Config{
		Name:             "feed-fetch",
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.7,
		MinRequests:      6,
	}
}

// TranscoderConfig trips after five straight transient failures. Submissions can take
// half an hour each, so there is no useful ratio window.
func TranscoderConfig() Config {
	return Config{
		Name:                "transcoder",
		MaxRequests:         1,
		Timeout:             5 * time.Minute,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker is a named gobreaker with state metrics and logging.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker from cfg and publishes its initial closed state.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  tripRule(cfg),
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

func tripRule(cfg Config) func(gobreaker.Counts) bool {
	if cfg.ConsecutiveFailures > 0 {
		return func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		}
	}
	return func(c gobreaker.Counts) bool {
		if c.Requests < cfg.MinRequests || c.Requests == 0 {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureThreshold
	}
}

// Do runs fn through cb and returns its typed result. A refused call returns the zero
// value and gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	v, err := cb.breaker.Execute(func() (any, error) { return fn() })
	if err != nil {
		if IsRejected(err) {
			breakerRejections.WithLabelValues(cb.name).Inc()
		}
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// State returns the current gobreaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether calls are currently refused outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// IsRejected reports whether err was produced by the breaker refusing a call
// (open state, or too many requests while half-open).
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
