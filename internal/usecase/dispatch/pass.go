package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/observability/logging"
)

// recordTimeout bounds the ledger write after a completed gateway call. The write
// is detached from the pass context so a stop cannot lose a finished dispatch.
const recordTimeout = 10 * time.Second

// RunPass runs one pass over the current feed outside the schedule. It waits for any
// running pass or manual submission to finish first.
func (p *Pipeline) RunPass(ctx context.Context) (*PassStats, error) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	prev := p.State()
	defer p.setState(prev)
	return p.runPass(ctx)
}

// runPass must be called with dispatchMu held.
func (p *Pipeline) runPass(ctx context.Context) (stats *PassStats, err error) {
	ctx, span := p.tracer.Start(ctx, "dispatch.pass")
	start := p.now()
	stats = &PassStats{StartedAt: start}

	defer func() {
		stats.Duration = p.now().Sub(start)
		passDuration.Observe(stats.Duration.Seconds())
		span.SetAttributes(
			attribute.Int("dispatch.entries", stats.Entries),
			attribute.Int("dispatch.matched", stats.Matched),
			attribute.Int("dispatch.dispatched", stats.Dispatched),
		)
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		passesTotal.WithLabelValues(result).Inc()
		span.End()
		p.recordPass(stats, err)
	}()

	p.setState(StatePolling)
	entries, err := p.deps.Feed.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return stats, stopped(ctx)
		}
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	stats.Entries = len(entries)
	entriesTotal.WithLabelValues("seen").Add(float64(len(entries)))

	watches, err := p.deps.Watches.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list watch titles: %w", err)
	}
	matcher := NewMatcher(watches)

	p.setState(StateMatching)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return stats, stopped(ctx)
		}
		if matcher.Len() == 0 {
			break
		}
		p.processEntry(ctx, entry, matcher, stats)
		p.setState(StateMatching)
	}

	logging.WithTrace(ctx, p.logger).Info("feed pass completed",
		slog.Int("entries", stats.Entries),
		slog.Int("matched", stats.Matched),
		slog.Int("deduplicated", stats.Deduplicated),
		slog.Int("dispatched", stats.Dispatched),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("deferred", stats.Deferred),
		slog.Duration("duration", p.now().Sub(start)),
	)
	return stats, nil
}

// stopped reports an abandoned pass. A pass timeout is distinguishable through context.DeadlineExceeded.
func stopped(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrPipelineStopped, ctx.Err())
}

func (p *Pipeline) recordPass(stats *PassStats, err error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	cp := *stats
	p.lastPass = &cp
	p.lastPassError = ""
	if err != nil {
		p.lastPassError = err.Error()
	}
}

// processEntry handles one feed entry. Nothing it does, panics included, escapes to the pass.
func (p *Pipeline) processEntry(ctx context.Context, entry entity.FeedEntry, m *Matcher, stats *PassStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Panics++
			entryPanicsTotal.Inc()
			p.logger.Error("panic while processing feed entry",
				slog.String("title", entry.Title),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	key, err := entity.DeriveEntryKey(entry)
	if err != nil {
		stats.Skipped++
		entriesTotal.WithLabelValues("skipped").Inc()
		p.logger.Warn("skipping feed entry without a usable key",
			slog.String("title", entry.Title),
			slog.String("link", entry.SourceLink),
			slog.Any("error", err))
		return
	}

	matched, ok := m.Match(entry.Title)
	if !ok {
		return
	}
	stats.Matched++
	entriesTotal.WithLabelValues("matched").Inc()

	exists, err := p.deps.Ledger.Exists(ctx, key)
	if err != nil {
		stats.Errors++
		p.logger.Error("ledger lookup failed",
			slog.String("entry_key", key),
			slog.Any("error", err))
		return
	}
	if exists {
		stats.Deduplicated++
		entriesTotal.WithLabelValues("deduplicated").Inc()
		p.logger.Debug("entry already dispatched", slog.String("entry_key", key))
		return
	}

	p.logger.Info("watch title matched",
		slog.String("entry_key", key),
		slog.String("title", entry.Title),
		slog.String("watch", matched))

	_, outcome, err := p.dispatch(ctx, key, entry, matched)
	switch {
	case err != nil && outcome.Status == "":
		// pacing wait interrupted before the gateway was called
		return
	case outcome.IsDeferred():
		stats.Deferred++
	default:
		stats.Dispatched++
		entriesTotal.WithLabelValues("dispatched").Inc()
		if outcome.IsSuccess() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	if err != nil {
		stats.Errors++
	}
}

// dispatch submits entry and writes its record. Deferred outcomes return a nil record
// and no error. dispatchMu must be held.
func (p *Pipeline) dispatch(ctx context.Context, key string, entry entity.FeedEntry, matched string) (*entity.DispatchRecord, entity.Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "dispatch.entry", trace.WithAttributes(
		attribute.String("dispatch.entry_key", key),
		attribute.String("dispatch.title", entry.Title),
	))
	defer span.End()
	log := logging.WithTrace(ctx, p.logger)

	p.setState(StateDispatching)
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, entity.Outcome{}, fmt.Errorf("wait for dispatch slot: %w", err)
	}

	outcome := p.deps.Gateway.Submit(ctx, entry.Title, entry.SourceLink)
	label := string(outcome.Status)
	if outcome.IsDeferred() {
		label = "deferred"
	}
	outcomesTotal.WithLabelValues(label).Inc()
	span.SetAttributes(attribute.String("dispatch.outcome", label))

	if outcome.IsDeferred() {
		log.Warn("dispatch deferred; entry stays eligible",
			slog.String("entry_key", key),
			slog.String("reason", outcome.Reason))
		return nil, outcome, nil
	}

	link := ""
	if outcome.IsSuccess() && p.deps.Links != nil {
		link = p.deps.Links.MakeShareableLink(outcome.ArtifactID)
	}
	rec := entity.NewDispatchRecord(key, entry, matched, outcome, link, p.now())

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.deps.Ledger.Record(recordCtx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record dispatch")
		if errors.Is(err, entity.ErrAlreadyDispatched) {
			log.Warn("entry was recorded concurrently; keeping the first record",
				slog.String("entry_key", key))
		} else {
			log.Error("failed to record dispatch",
				slog.String("entry_key", key),
				slog.String("outcome", label),
				slog.Any("error", err))
		}
		return nil, outcome, fmt.Errorf("record dispatch: %w", err)
	}

	if outcome.IsSuccess() {
		log.Info("dispatch succeeded",
			slog.String("entry_key", key),
			slog.String("artifact", outcome.ArtifactID))
	} else {
		log.Warn("dispatch failed",
			slog.String("entry_key", key),
			slog.String("reason", outcome.Reason))
	}

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.NotifyDispatch(recordCtx, rec); err != nil {
			log.Warn("notify dispatch failed",
				slog.String("entry_key", key),
				slog.Any("error", err))
		}
	}
	return rec, outcome, nil
}

// Submit dispatches link by hand, bypassing the watch list but not the ledger.
// A link that was already dispatched returns the existing record together with
// entity.ErrAlreadyDispatched. When the service cannot take the job the error wraps
// ErrDispatchDeferred and nothing is recorded.
func (p *Pipeline) Submit(ctx context.Context, title, link string) (*entity.DispatchRecord, error) {
	link = strings.TrimSpace(link)
	if err := entity.ValidateSourceLink(link); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = link
	}

	entry := entity.FeedEntry{Title: title, SourceLink: link, EntryID: link, PublishedAt: p.now()}
	key, err := entity.DeriveEntryKey(entry)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	exists, err := p.deps.Ledger.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("submit: check ledger: %w", err)
	}
	if exists {
		existing, err := p.deps.Ledger.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("submit: load existing record: %w", err)
		}
		return existing, entity.ErrAlreadyDispatched
	}

	prev := p.State()
	defer p.setState(prev)

	rec, outcome, err := p.dispatch(ctx, key, entry, "")
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrDispatchDeferred, outcome.Reason)
	}
	return rec, nil
}
