package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"relayfeed/internal/app"
	"relayfeed/internal/config"
	httpapi "relayfeed/internal/handler/http"
	"relayfeed/internal/handler/telegram"
	"relayfeed/internal/infra/lock"
	workerPkg "relayfeed/internal/infra/worker"
	"relayfeed/internal/observability/logging"
	"relayfeed/internal/observability/metrics"
	"relayfeed/internal/observability/tracing"
	"relayfeed/internal/usecase/dispatch"
	"relayfeed/internal/usecase/watchlist"
	envconfig "relayfeed/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	// pipelineStopTimeout bounds waiting for an in-flight pass at shutdown.
	pipelineStopTimeout = 30 * time.Second
	// notifyDrainTimeout bounds waiting for in-flight notices at shutdown.
	notifyDrainTimeout = 10 * time.Second
	// adminShutdownTimeout bounds the admin API's graceful shutdown.
	adminShutdownTimeout = 10 * time.Second
	maxAdminBodyBytes    = 1 << 20
)

func main() {
	startedAt := time.Now()
	// .env is optional
	_ = godotenv.Load()

	logger := logging.Setup(
		envconfig.GetEnvString("LOG_LEVEL", "info"),
		envconfig.GetEnvString("LOG_FORMAT", "json"),
	)

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.RecordBuildInfo(getVersion())

	// Load worker configuration (fail-open strategy)
	cfg := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("feed_url", cfg.FeedURL),
		slog.String("poll_schedule", cfg.PollSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("dispatch_pause", cfg.DispatchPause),
		slog.Bool("autostart", cfg.Autostart),
		slog.Int("notify_max_concurrent", cfg.NotifyMaxConcurrent),
		slog.Int("health_port", cfg.HealthPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, workerMetrics, startedAt); err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// run wires every component and blocks until ctx is cancelled or a server fails.
func run(ctx context.Context, logger *slog.Logger, cfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics, startedAt time.Time) error {
	instanceLock, err := lock.Acquire(cfg.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("another worker is running (lock %s)", cfg.LockFile)
		}
		return err
	}
	defer func() {
		if err := instanceLock.Release(); err != nil {
			logger.Warn("failed to release lock", slog.Any("error", err))
		}
	}()

	store, err := app.OpenStore(ctx, cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	cached, err := store.UseRedisCache(ctx, cfg.Redis, logging.ForComponent(logger, "cache"))
	if err != nil {
		// Redis only speeds up Exists; the ledger stays authoritative.
		logger.Warn("redis unavailable, ledger cache disabled", slog.Any("error", err))
	}
	workerMetrics.SetComponentEnabled("redis", cached)

	watches := &watchlist.Service{Repo: store.Watches}
	if err := applySeed(ctx, logger, cfg, watches); err != nil {
		return err
	}

	gateway, err := app.NewGateway(cfg)
	if err != nil {
		return err
	}

	notifiers, err := app.NewNotifiers(cfg, logging.ForComponent(logger, "notify"))
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), notifyDrainTimeout)
		defer cancel()
		if err := notifiers.Shutdown(drainCtx); err != nil {
			logger.Warn("notification shutdown incomplete", slog.Any("error", err))
		}
	}()
	for _, name := range []string{"telegram", "discord", "slack", "kafka"} {
		workerMetrics.SetComponentEnabled(name, false)
	}
	for _, name := range notifiers.Enabled() {
		workerMetrics.SetComponentEnabled(name, true)
	}

	tp := tracing.Install("relayfeed-worker", getVersion(), 1.0)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	pipeline, err := app.NewPipeline(cfg, store, app.PipelineOptions{
		Gateway:  gateway,
		Notifier: notifiers.Service,
		Logger:   logging.ForComponent(logger, "dispatch"),
	})
	if err != nil {
		return err
	}

	health := &httpapi.Health{
		Version:  getVersion(),
		Ledger:   store,
		Optional: map[string]httpapi.Pinger{"transcoder": httpapi.PingerFunc(gateway.Probe)},
		Pipeline: pipeline,
		Channels: notifiers.Service,
		Logger:   logger,
	}
	healthAddr := fmt.Sprintf(":%d", cfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger,
		workerPkg.WithReadinessCheck("database", store.PingContext),
		workerPkg.WithReadyHook(func(ready bool) {
			workerMetrics.SetReady(ready)
			health.SetReady(ready)
		}),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := healthServer.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if cfg.MetricsPort != 0 {
		g.Go(func() error { return serveMetrics(gctx, logger, cfg.MetricsPort, health) })
	}

	if cfg.AdminAPIPort != 0 {
		trusted, err := httpapi.ParseTrustedProxies(cfg.AdminTrustedProxies)
		if err != nil {
			return fmt.Errorf("ADMIN_TRUSTED_PROXIES: %w", err)
		}
		api := httpapi.API{
			Pipeline:           pipeline,
			Watches:            watches,
			Health:             health,
			JWTSecret:          []byte(cfg.JWTSecret),
			RateLimitPerMinute: cfg.AdminRateLimit,
			TrustedProxies:     trusted,
			MaxBodyBytes:       maxAdminBodyBytes,
			Logger:             logging.ForComponent(logger, "admin_api"),
		}
		addr := fmt.Sprintf(":%d", cfg.AdminAPIPort)
		g.Go(func() error { return httpapi.Serve(gctx, addr, api.Handler(), adminShutdownTimeout, logger) })
	}
	workerMetrics.SetComponentEnabled("admin_api", cfg.AdminAPIPort != 0)

	collector := &metrics.Collector{
		Ledger:  store.Ledger,
		Watches: watches,
		DB:      store.DB,
		Logger:  logger,
	}
	g.Go(func() error { return collector.Run(gctx) })

	if notifiers.Bot != nil {
		commands := telegram.NewCommands(pipeline, watches, cfg.TelegramAdmins, cfg.PassTimeout, logging.ForComponent(logger, "telegram"))
		commands.Register(notifiers.Bot)
		g.Go(func() error { return telegram.Serve(gctx, notifiers.Bot, logger) })
		if len(cfg.TelegramAdmins) == 0 {
			logger.Warn("TELEGRAM_ADMINS is empty, every bot command will be denied")
		}
	}

	if cfg.Autostart {
		if res := pipeline.Start(gctx); res != dispatch.StartResultStarted {
			logger.Warn("pipeline autostart", slog.String("result", string(res)))
		}
	} else {
		logger.Info("pipeline autostart disabled, waiting for a start command")
	}

	// Mark as ready once every server and the pipeline are set up
	healthServer.SetReady(true)
	workerPkg.NotifySystemd(logger, daemon.SdNotifyReady)
	workerMetrics.RecordStartup(time.Since(startedAt))
	logger.Info("worker started",
		slog.String("version", getVersion()),
		slog.Duration("startup", time.Since(startedAt)))

	g.Go(func() error {
		<-gctx.Done()
		healthServer.SetReady(false)
		workerPkg.NotifySystemd(logger, daemon.SdNotifyStopping)

		stopCtx, cancel := context.WithTimeout(context.Background(), pipelineStopTimeout)
		defer cancel()
		res := pipeline.Stop(stopCtx)
		logger.Info("pipeline stopped", slog.String("result", string(res)))
		return nil
	})

	return g.Wait()
}

// applySeed loads the optional seed file: watch titles are added to the list and
// Telegram recipients are merged into cfg.
func applySeed(ctx context.Context, logger *slog.Logger, cfg *workerPkg.WorkerConfig, watches *watchlist.Service) error {
	if cfg.SeedFile == "" {
		return nil
	}
	seed, err := config.LoadSeedConfig(cfg.SeedFile)
	if err != nil {
		return err
	}
	added, err := watches.Seed(ctx, seed.WatchTitles)
	if err != nil {
		return fmt.Errorf("seed watch list: %w", err)
	}
	cfg.TelegramAdmins = seed.MergeAdmins(cfg.TelegramAdmins)
	cfg.TelegramNotifyChats = seed.MergeNotifyChats(cfg.TelegramNotifyChats)
	cfg.TelegramPostChat = seed.PostChatOr(cfg.TelegramPostChat)
	logger.Info("seed file applied",
		slog.String("path", cfg.SeedFile),
		slog.Int("watch_titles_added", added),
		slog.Int("telegram_admins", len(cfg.TelegramAdmins)))
	return nil
}

// getVersion returns the application version from environment or the build.
func getVersion() string {
	return envconfig.GetEnvString("VERSION", version)
}
