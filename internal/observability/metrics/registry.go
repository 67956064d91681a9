// Package metrics refreshes gauges that describe stored state rather than events:
// ledger size, watch list size and database pool usage. Event counters live next to
// the code that produces them.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchRecordsTotal is the number of rows in the dispatch ledger.
	DispatchRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_dispatch_records",
			Help: "Number of records in the dispatch ledger",
		},
	)

	// WatchTitlesTotal is the number of watch titles.
	WatchTitlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_watch_titles",
			Help: "Number of titles on the watch list",
		},
	)

	// DBConnectionsActive tracks connections in use.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_db_connections_active",
			Help: "Number of database connections in use",
		},
	)

	// DBConnectionsIdle tracks idle connections.
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayfeed_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	collectErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayfeed_state_collect_errors_total",
			Help: "Failed state gauge refreshes by source",
		},
		[]string{"source"},
	)
)

// LedgerCounter is satisfied by the dispatch ledger.
type LedgerCounter interface {
	Count(ctx context.Context) (int64, error)
}

// WatchCounter reports the watch list size.
type WatchCounter interface {
	CountWatches(ctx context.Context) (int, error)
}

// StatsSource is satisfied by *sql.DB.
type StatsSource interface {
	Stats() sql.DBStats
}

// Collector periodically refreshes the state gauges. Nil sources are skipped.
type Collector struct {
	Ledger   LedgerCounter
	Watches  WatchCounter
	DB       StatsSource
	Interval time.Duration
	Logger   *slog.Logger
}

// Run refreshes once immediately and then every Interval (default 30s) until ctx ends.
func (c *Collector) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.Collect(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Collect refreshes every gauge once.
func (c *Collector) Collect(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if c.Ledger != nil {
		if n, err := c.Ledger.Count(ctx); err != nil {
			c.fail(ctx, "ledger", err)
		} else {
			DispatchRecordsTotal.Set(float64(n))
		}
	}
	if c.Watches != nil {
		if n, err := c.Watches.CountWatches(ctx); err != nil {
			c.fail(ctx, "watches", err)
		} else {
			WatchTitlesTotal.Set(float64(n))
		}
	}
	if c.DB != nil {
		UpdateDBConnectionStats(c.DB.Stats())
	}
}

func (c *Collector) fail(ctx context.Context, source string, err error) {
	if ctx.Err() != nil {
		return
	}
	collectErrors.WithLabelValues(source).Inc()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("state gauge refresh failed", slog.String("source", source), slog.Any("error", err))
}

// UpdateDBConnectionStats copies pool statistics into the connection gauges.
func UpdateDBConnectionStats(s sql.DBStats) {
	DBConnectionsActive.Set(float64(s.InUse))
	DBConnectionsIdle.Set(float64(s.Idle))
}
