package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/observability/tracing"
	"relayfeed/internal/repository"
)

// FeedSource returns the current feed snapshot in feed order.
type FeedSource interface {
	Fetch(ctx context.Context) ([]entity.FeedEntry, error)
}

// Gateway hands a release to the transcode service and reports a normalized outcome.
type Gateway interface {
	Submit(ctx context.Context, title, link string) entity.Outcome
}

// LinkEncoder turns an artifact id into a link users can follow.
type LinkEncoder interface {
	MakeShareableLink(artifactID string) string
}

// Notifier is told about every recorded dispatch.
type Notifier interface {
	NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error
}

// Deps are the collaborators of a Pipeline. Links and Notifier may be nil.
type Deps struct {
	Feed     FeedSource
	Watches  repository.WatchListRepository
	Ledger   repository.DispatchLedger
	Gateway  Gateway
	Links    LinkEncoder
	Notifier Notifier
}

// DefaultSchedule polls the feed once a minute.
const DefaultSchedule = "@every 60s"

// Config controls pacing of the poll loop.
type Config struct {
	Schedule    cron.Schedule
	Location    *time.Location
	Pause       time.Duration // minimum gap between two gateway submissions
	PassTimeout time.Duration // upper bound for a single pass, 0 disables
}

// DefaultConfig returns a once-a-minute schedule with a one second pause.
func DefaultConfig() Config {
	sched, _ := ParseSchedule(DefaultSchedule)
	return Config{
		Schedule:    sched,
		Location:    time.UTC,
		Pause:       time.Second,
		PassTimeout: time.Hour,
	}
}

// ParseSchedule parses a standard five-field cron expression or a descriptor such as "@every 60s".
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer overrides the tracer used for pass and entry spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline owns the poll loop. It replaces a process-wide enabled flag and task handle
// with one object that command surfaces share.
type Pipeline struct {
	deps        Deps
	schedule    cron.Schedule
	loc         *time.Location
	passTimeout time.Duration
	pacer       *rate.Limiter
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time

	// dispatchMu serializes passes and manual submissions so ledger writes never race.
	dispatchMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	// exiting is the done channel of a cancelled loop that may still be finishing.
	exiting chan struct{}

	enabled atomic.Bool
	state   atomic.Int32

	statusMu      sync.RWMutex
	lastPass      *PassStats
	lastPassError string
	nextTick      time.Time
}

// NewPipeline validates deps and cfg and returns an idle, disabled pipeline.
func NewPipeline(deps Deps, cfg Config, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Feed == nil:
		return nil, errors.New("dispatch: feed source is required")
	case deps.Watches == nil:
		return nil, errors.New("dispatch: watch list is required")
	case deps.Ledger == nil:
		return nil, errors.New("dispatch: ledger is required")
	case deps.Gateway == nil:
		return nil, errors.New("dispatch: gateway is required")
	case cfg.Schedule == nil:
		return nil, errors.New("dispatch: schedule is required")
	case cfg.Pause < 0:
		return nil, fmt.Errorf("dispatch: pause must not be negative, got %v", cfg.Pause)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}

	p := &Pipeline{
		deps:        deps,
		schedule:    cfg.Schedule,
		loc:         cfg.Location,
		passTimeout: cfg.PassTimeout,
		pacer:       rate.NewLimiter(limit, 1),
		tracer:      tracing.GetTracer(),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	enabledGauge.Set(0)
	stateGauge.Set(float64(StateIdle))
	return p, nil
}

// Start enables the pipeline and launches the poll loop. The loop outlives ctx;
// only Stop ends it. The first pass runs immediately. If a previous loop is still
// exiting, Start waits for it (bounded by ctx) so two loops never run at once.
func (p *Pipeline) Start(ctx context.Context) StartResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SetEnabled(true)
	if p.running {
		return StartResultAlreadyRunning
	}
	if !p.awaitExitLocked(ctx) {
		p.logger.Warn("pipeline start deferred: previous loop still exiting")
		return StartResultStopping
	}
	if p.running {
		return StartResultAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("pipeline started")
	return StartResultStarted
}

// Stop disables the pipeline, cancels the loop and waits for it to exit or for ctx.
// A sleeping loop wakes immediately; an in-flight gateway call is cancelled.
// StopResultStopping means ctx expired first and the loop is still finishing.
func (p *Pipeline) Stop(ctx context.Context) StopResult {
	p.mu.Lock()
	p.SetEnabled(false)
	if !p.running {
		exiting := p.exiting
		p.mu.Unlock()
		if exiting == nil {
			return StopResultNotRunning
		}
		return p.waitExit(ctx, exiting)
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.exiting = done
	p.mu.Unlock()

	cancel()
	return p.waitExit(ctx, done)
}

func (p *Pipeline) waitExit(ctx context.Context, done chan struct{}) StopResult {
	select {
	case <-done:
		p.clearExiting(done)
		p.logger.Info("pipeline stopped")
		return StopResultStopped
	case <-ctx.Done():
		p.logger.Warn("pipeline stop timed out waiting for loop exit", slog.Any("error", ctx.Err()))
		return StopResultStopping
	}
}

func (p *Pipeline) clearExiting(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exiting == done {
		p.exiting = nil
	}
}

// awaitExitLocked waits for a cancelled loop to exit. p.mu is released while waiting
// and held again on return. It reports false if ctx expired first.
func (p *Pipeline) awaitExitLocked(ctx context.Context) bool {
	for p.exiting != nil {
		exiting := p.exiting
		select {
		case <-exiting:
			if p.exiting == exiting {
				p.exiting = nil
			}
			continue
		default:
		}

		p.mu.Unlock()
		select {
		case <-exiting:
		case <-ctx.Done():
		}
		p.mu.Lock()

		if ctx.Err() != nil && p.exiting == exiting {
			select {
			case <-exiting:
			default:
				return false
			}
		}
	}
	return true
}

// IsRunning reports whether the poll loop goroutine is alive.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// IsEnabled reports whether passes run on each tick.
func (p *Pipeline) IsEnabled() bool { return p.enabled.Load() }

// SetEnabled toggles passes without stopping the loop. A disabled loop keeps sleeping
// and re-checks the flag on each tick.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
	enabledGauge.Set(boolGauge(enabled))
}

// State returns the current loop state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	stateGauge.Set(float64(s))
}

// Status returns a snapshot for operators.
func (p *Pipeline) Status() Status {
	st := Status{
		Running: p.IsRunning(),
		Enabled: p.IsEnabled(),
		State:   p.State().String(),
	}

	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	if p.lastPass != nil {
		cp := *p.lastPass
		st.LastPass = &cp
	}
	st.LastPassError = p.lastPassError
	if st.Running && !p.nextTick.IsZero() {
		next := p.nextTick
		st.NextTick = &next
	}
	return st
}

// ListDispatchRecords returns ledger records newest first.
func (p *Pipeline) ListDispatchRecords(ctx context.Context, filter repository.ListFilter) ([]*entity.DispatchRecord, error) {
	recs, err := p.deps.Ledger.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list dispatch records: %w", err)
	}
	return recs, nil
}

// GetDispatchRecord returns the ledger record for entryKey, or an error wrapping
// entity.ErrNotFound.
func (p *Pipeline) GetDispatchRecord(ctx context.Context, entryKey string) (*entity.DispatchRecord, error) {
	rec, err := p.deps.Ledger.Get(ctx, entryKey)
	if err != nil {
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}
	return rec, nil
}

// CountDispatchRecords returns the number of ledger records.
func (p *Pipeline) CountDispatchRecords(ctx context.Context) (int64, error) {
	n, err := p.deps.Ledger.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count dispatch records: %w", err)
	}
	return n, nil
}

func (p *Pipeline) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.setState(StateIdle)

	for {
		if p.IsEnabled() {
			p.scheduledPass(ctx)
		}
		if ctx.Err() != nil {
			return
		}

		now := p.now()
		next := p.schedule.Next(now.In(p.loc))
		p.statusMu.Lock()
		p.nextTick = next
		p.statusMu.Unlock()
		p.setState(StateSleeping)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Pipeline) scheduledPass(ctx context.Context) {
	if p.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.passTimeout)
		defer cancel()
	}

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	if _, err := p.runPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("feed pass failed", slog.Any("error", err))
	}
}
