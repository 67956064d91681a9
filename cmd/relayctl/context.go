package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"relayfeed/internal/app"
	"relayfeed/internal/infra/db"
	"relayfeed/internal/infra/lock"
	workerPkg "relayfeed/internal/infra/worker"
	"relayfeed/internal/observability/logging"
)

type globalFlags struct {
	driver  string
	dsn     string
	json    bool
	verbose bool
}

type commandContext struct {
	flags  *globalFlags
	logger *slog.Logger

	configOnce sync.Once
	config     *workerPkg.WorkerConfig
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// setupLogging sends warnings (debug with --verbose) to w as text.
func (c *commandContext) setupLogging(w io.Writer) {
	level := "warn"
	if c.flags.verbose {
		level = "debug"
	}
	c.logger = logging.New(w, level, "text")
	slog.SetDefault(c.logger)
}

// ensureConfig reads the worker environment once and applies the database flags.
func (c *commandContext) ensureConfig() *workerPkg.WorkerConfig {
	c.configOnce.Do(func() {
		cfg := workerPkg.LoadConfigFromEnv(c.logger, nil)
		if c.flags.driver != "" {
			cfg.DatabaseDriver = c.flags.driver
		}
		if c.flags.dsn != "" {
			if d, _ := db.ParseDialect(cfg.DatabaseDriver); d == db.DialectPostgres {
				cfg.DatabaseURL = c.flags.dsn
			} else {
				cfg.SQLitePath = c.flags.dsn
			}
		}
		c.config = cfg
	})
	return c.config
}

func (c *commandContext) withStore(ctx context.Context, fn func(*app.Store) error) error {
	cfg := c.ensureConfig()
	store, err := app.OpenStore(ctx, cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

// withWorkerLock holds the worker's lock for the duration of fn so a one-off pass or
// submission never races a running worker.
func (c *commandContext) withWorkerLock(fn func() error) error {
	cfg := c.ensureConfig()
	l, err := lock.Acquire(cfg.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("the worker is running (lock %s); use its bot or admin API instead", cfg.LockFile)
		}
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}
