package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/handler/http/requestid"
	"relayfeed/internal/resilience/circuitbreaker"
)

const (
	defaultSlotWait    = 5 * time.Second
	defaultSendTimeout = time.Minute
)

// Service fans dispatch notices out to every enabled channel.
type Service interface {
	// NotifyDispatch hands record to every enabled channel and returns at once.
	// Each channel sends in its own goroutine; a failing or panicking channel is
	// logged and counted but never reported to the caller.
	NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error

	// GetChannelHealth reports each channel's configuration and breaker state.
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown stops accepting notices and waits for in-flight sends or ctx.
	Shutdown(ctx context.Context) error
}

// ChannelHealthStatus is one row of the admin API's channel health output.
type ChannelHealthStatus struct {
	Name               string `json:"name"`
	Enabled            bool   `json:"enabled"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
	BreakerState       string `json:"breaker_state"`
}

// Option adjusts a Service.
type Option func(*service)

// WithBreaker replaces the per-channel breaker settings. The channel name is
// appended to cfg.Name.
func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(s *service) { s.breakerCfg = cfg }
}

// WithSendTimeout bounds a single channel send.
func WithSendTimeout(d time.Duration) Option {
	return func(s *service) { s.sendTimeout = d }
}

// ChannelBreakerConfig opens a channel's breaker after five failed notices in a row
// and probes it again after five minutes. Cancellation during shutdown is not a failure.
func ChannelBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:                "notify",
		MaxRequests:         1,
		Timeout:             5 * time.Minute,
		ConsecutiveFailures: 5,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

type route struct {
	ch      Channel
	breaker *circuitbreaker.CircuitBreaker
}

type service struct {
	routes      []route
	slots       chan struct{}
	wg          sync.WaitGroup
	stopCtx     context.Context
	stop        context.CancelFunc
	breakerCfg  circuitbreaker.Config
	sendTimeout time.Duration
	slotWait    time.Duration
}

// NewService builds the fan-out over channels. At most maxConcurrent sends run at
// once across all channels; a notice waiting longer than five seconds for a slot is dropped.
func NewService(channels []Channel, maxConcurrent int, opts ...Option) Service {
	stopCtx, stop := context.WithCancel(context.Background())
	s := &service{
		slots:       make(chan struct{}, max(maxConcurrent, 1)),
		stopCtx:     stopCtx,
		stop:        stop,
		breakerCfg:  ChannelBreakerConfig(),
		sendTimeout: defaultSendTimeout,
		slotWait:    defaultSlotWait,
	}
	for _, opt := range opts {
		opt(s)
	}

	enabled := 0
	for _, ch := range channels {
		cfg := s.breakerCfg
		cfg.Name = fmt.Sprintf("%s-%s", s.breakerCfg.Name, ch.Name())
		s.routes = append(s.routes, route{ch: ch, breaker: circuitbreaker.New(cfg)})
		if ch.IsEnabled() {
			enabled++
		}
	}
	channelsEnabled.Set(float64(enabled))
	return s
}

func (s *service) NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error {
	if record == nil {
		slog.Warn("ignoring nil dispatch record")
		return nil
	}
	if s.stopCtx.Err() != nil {
		slog.Warn("notification service stopped, dropping notice", slog.String("entry_key", record.EntryKey))
		return nil
	}

	id := requestid.FromContext(ctx)
	if id == "" {
		id = uuid.New().String()
	}

	// 全チャネルで同じスナップショットを共有する
	snapshot := *record
	sent := 0
	for _, r := range s.routes {
		if !r.ch.IsEnabled() {
			continue
		}
		sent++
		s.wg.Add(1)
		go s.deliver(id, r, &snapshot)
	}

	if sent > 0 {
		slog.Info("dispatch notice queued",
			slog.String("request_id", id),
			slog.String("entry_key", record.EntryKey),
			slog.String("outcome", string(record.Outcome)),
			slog.Int("channels", sent))
	}
	return nil
}

func (s *service) deliver(id string, r route, record *entity.DispatchRecord) {
	defer s.wg.Done()
	noticesInFlight.Inc()
	defer noticesInFlight.Dec()

	name := r.ch.Name()
	logger := slog.Default().With(slog.String("request_id", id), slog.String("channel", name))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("notification channel panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			observeDrop(name, dropPanic)
		}
	}()

	if !s.acquire(name, logger) {
		return
	}
	defer func() { <-s.slots }()

	ctx, cancel := context.WithTimeout(s.stopCtx, s.sendTimeout)
	defer cancel()
	ctx = requestid.WithRequestID(ctx, id)

	start := time.Now()
	_, err := circuitbreaker.Do(r.breaker, func() (struct{}, error) {
		return struct{}{}, r.ch.Send(ctx, record)
	})
	took := time.Since(start)

	switch {
	case circuitbreaker.IsRejected(err):
		observeDrop(name, dropCircuitOpen)
		logger.Warn("channel breaker open, notice dropped", slog.String("entry_key", record.EntryKey))
	case err != nil:
		observeSend(name, err, took)
		logger.Warn("channel notification failed",
			slog.String("entry_key", record.EntryKey),
			slog.Duration("send_duration", took),
			slog.Any("error", err))
	default:
		observeSend(name, nil, took)
		logger.Info("channel notification sent",
			slog.String("entry_key", record.EntryKey),
			slog.String("title", record.Title),
			slog.Duration("send_duration", took))
	}
}

func (s *service) acquire(name string, logger *slog.Logger) bool {
	timer := time.NewTimer(s.slotWait)
	defer timer.Stop()
	select {
	case s.slots <- struct{}{}:
		return true
	case <-timer.C:
		logger.Warn("notice dropped: all send slots busy")
		observeDrop(name, dropPoolFull)
	case <-s.stopCtx.Done():
		observeDrop(name, dropShutdown)
	}
	return false
}

func (s *service) GetChannelHealth() []ChannelHealthStatus {
	out := make([]ChannelHealthStatus, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, ChannelHealthStatus{
			Name:               r.ch.Name(),
			Enabled:            r.ch.IsEnabled(),
			CircuitBreakerOpen: r.breaker.IsOpen(),
			BreakerState:       r.breaker.State().String(),
		})
	}
	return out
}

// Shutdown cancels in-flight sends once ctx expires.
func (s *service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.stop()
	select {
	case <-done:
		slog.Info("notification service stopped")
		return nil
	case <-ctx.Done():
		slog.Warn("notification service stop timed out, cancelling sends")
		return ctx.Err()
	}
}
