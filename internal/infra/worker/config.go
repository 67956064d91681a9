package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"relayfeed/internal/infra/cache"
	"relayfeed/internal/infra/db"
	"relayfeed/internal/infra/notifier"
	"relayfeed/internal/infra/sharelink"
	"relayfeed/internal/infra/transcoder"
	"relayfeed/internal/pkg/config"
	envconfig "relayfeed/pkg/config"
)

// DefaultFeedURL is the 720p release feed.
const DefaultFeedURL = "https://subsplease.org/rss/?t&r=720"

// WorkerConfig holds everything the worker process reads from the environment.
//
// Scheduling, pacing, concurrency and port values are validated and fall back to their
// defaults when invalid (fail-open). Secrets, recipient lists and URLs are read as-is and
// checked by Validate or by the component consuming them.
type WorkerConfig struct {
	// DatabaseDriver is "sqlite" (default) or "postgres".
	DatabaseDriver string
	// DatabaseURL is the PostgreSQL DSN. Ignored for sqlite.
	DatabaseURL string
	// SQLitePath defaults to <DataDir>/relayfeed.db.
	SQLitePath string
	DataDir    string

	FeedURL string

	// PollSchedule is a standard cron expression or descriptor. Default: "@every 60s".
	PollSchedule string
	// Timezone is the IANA zone the schedule is evaluated in. Default: UTC.
	Timezone string
	// DispatchPause is the minimum gap between two transcode submissions. Range: 0-1m.
	DispatchPause time.Duration
	// PassTimeout bounds one scheduled pass. Range: 1m-24h.
	PassTimeout time.Duration
	// Autostart starts the poll loop at boot.
	Autostart bool

	Transcoder transcoder.Config

	Telegram notifier.TelegramConfig
	// TelegramAdmins may run bot commands. Empty denies everyone.
	TelegramAdmins []int64
	// TelegramNotifyChats receive the notice for every dispatch. When empty the
	// admins' private chats are used.
	TelegramNotifyChats []string
	// TelegramPostChat is a channel that also receives every notice.
	TelegramPostChat string
	ShareLinkBase    string

	Discord notifier.DiscordConfig
	Slack   notifier.SlackConfig
	Kafka   notifier.KafkaConfig
	// NotifyMaxConcurrent bounds in-flight notification sends. Range: 1-50.
	NotifyMaxConcurrent int
	// NotifySendTimeout bounds one channel send. Range: 5s-10m.
	NotifySendTimeout time.Duration

	Redis cache.Config

	// AdminAPIPort serves the authenticated admin API. 0 disables it.
	AdminAPIPort int
	JWTSecret    string
	// AdminRateLimit is requests per minute per client on the admin API. 0 disables.
	AdminRateLimit int
	// AdminTrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For header identifies the client.
	AdminTrustedProxies []string
	// MetricsPort serves /metrics and the health report.
	MetricsPort int
	// HealthPort serves the liveness and readiness probes.
	HealthPort int

	LockFile  string
	LogLevel  string
	LogFormat string
	// SeedFile is an optional YAML file with watch titles and recipients.
	SeedFile string
}

// DefaultConfig returns the defaults used when a variable is unset or invalid.
func DefaultConfig() WorkerConfig {
	tc := transcoder.DefaultConfig()
	return WorkerConfig{
		DatabaseDriver:      string(db.DialectSQLite),
		DataDir:             "./data",
		FeedURL:             DefaultFeedURL,
		PollSchedule:        "@every 60s",
		Timezone:            "UTC",
		DispatchPause:       time.Second,
		PassTimeout:         time.Hour,
		Autostart:           true,
		Transcoder:          tc,
		Telegram:            notifier.TelegramConfig{PollTimeout: 10 * time.Second, MessagesPerSecond: 1},
		Discord:             notifier.DiscordConfig{Timeout: 30 * time.Second},
		Slack:               notifier.SlackConfig{Timeout: 30 * time.Second},
		Kafka:               notifier.KafkaConfig{Topic: "relayfeed.dispatches", ClientID: "relayfeed"},
		NotifyMaxConcurrent: 10,
		NotifySendTimeout:   time.Minute,
		Redis:               cache.Config{Key: "relayfeed:dispatched"},
		AdminAPIPort:        8080,
		AdminRateLimit:      120,
		MetricsPort:         9090,
		HealthPort:          9091,
		LogLevel:            "info",
	}
}

// DSN returns the connection string for the selected driver.
func (c *WorkerConfig) DSN() string {
	if d, _ := db.ParseDialect(c.DatabaseDriver); d == db.DialectPostgres {
		return c.DatabaseURL
	}
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "relayfeed.db")
}

// Validate checks the hard requirements that have no safe default. All problems are
// returned together.
func (c *WorkerConfig) Validate() error {
	var errs []error

	dialect, err := db.ParseDialect(c.DatabaseDriver)
	if err != nil {
		errs = append(errs, fmt.Errorf("database driver: %w", err))
	} else if dialect == db.DialectPostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url: required when DATABASE_DRIVER=postgres"))
	}

	if err := config.ValidateHTTPURL(c.FeedURL); err != nil {
		errs = append(errs, fmt.Errorf("feed url: %w", err))
	}
	if err := config.ValidateCronSchedule(c.PollSchedule); err != nil {
		errs = append(errs, fmt.Errorf("poll schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := c.Transcoder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transcoder: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}
	for name, port := range map[string]int{"admin api port": c.AdminAPIPort, "metrics port": c.MetricsPort, "health port": c.HealthPort} {
		if err := config.ValidatePort(port); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.AdminAPIPort != 0 {
		// セキュリティ: 最小32文字（256ビット）を強制
		switch {
		case c.JWTSecret == "":
			errs = append(errs, errors.New("jwt secret: required when the admin api is enabled"))
		case len(c.JWTSecret) < 32:
			errs = append(errs, errors.New("jwt secret: must be at least 32 characters"))
		}
	}
	if c.ShareLinkBase != "" {
		if _, err := sharelink.New(c.ShareLinkBase); err != nil {
			errs = append(errs, fmt.Errorf("share link base: %w", err))
		}
	}

	return errors.Join(errs...)
}

// LoadConfigFromEnv reads the worker configuration. Validated fields fall back to
// DefaultConfig on bad input, with a warning log and a fallback metric per field.
// It never fails; call Validate for the hard requirements.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()
	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	l := config.NewLoader(logger, cm)

	cfg.DatabaseDriver = envconfig.GetEnvString("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = envconfig.GetEnvString("DATABASE_URL", "")
	cfg.DataDir = envconfig.GetEnvString("DATA_DIR", cfg.DataDir)
	cfg.SQLitePath = envconfig.GetEnvString("SQLITE_PATH", "")
	cfg.FeedURL = l.String("feed_url", "FEED_URL", cfg.FeedURL, config.ValidateHTTPURL)

	cfg.PollSchedule = l.String("poll_schedule", "POLL_SCHEDULE", cfg.PollSchedule, config.ValidateCronSchedule)
	cfg.Timezone = l.String("timezone", "WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.DispatchPause = l.Duration("dispatch_pause", "DISPATCH_PAUSE", cfg.DispatchPause, func(d time.Duration) error {
		return config.ValidateDuration(d, 0, time.Minute)
	})
	cfg.PassTimeout = l.Duration("pass_timeout", "PASS_TIMEOUT", cfg.PassTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Minute, 24*time.Hour)
	})
	cfg.Autostart = l.Bool("pipeline_autostart", "PIPELINE_AUTOSTART", cfg.Autostart)

	loadTranscoder(l, &cfg.Transcoder)
	loadNotifiers(l, logger, &cfg)

	cfg.Redis.Addr = envconfig.GetEnvString("REDIS_ADDR", "")
	cfg.Redis.Password = envconfig.GetEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = l.Int("redis_db", "REDIS_DB", 0, func(v int) error { return config.ValidateIntRange(v, 0, 15) })
	cfg.Redis.Key = envconfig.GetEnvString("REDIS_LEDGER_KEY", cfg.Redis.Key)

	cfg.AdminAPIPort = l.Int("admin_api_port", "ADMIN_API_PORT", cfg.AdminAPIPort, config.ValidatePort)
	cfg.JWTSecret = envconfig.GetEnvString("JWT_SECRET", "")
	cfg.AdminRateLimit = l.Int("admin_rate_limit", "ADMIN_RATE_LIMIT", cfg.AdminRateLimit, func(v int) error {
		return config.ValidateIntRange(v, 0, 10000)
	})
	cfg.AdminTrustedProxies = envconfig.GetEnvStringList("ADMIN_TRUSTED_PROXIES", nil)
	cfg.MetricsPort = l.Int("metrics_port", "METRICS_PORT", cfg.MetricsPort, config.ValidatePort)
	cfg.HealthPort = l.Int("health_port", "WORKER_HEALTH_PORT", cfg.HealthPort, config.ValidatePort)

	cfg.LockFile = envconfig.GetEnvString("LOCK_FILE", filepath.Join(cfg.DataDir, "relayfeed.lock"))
	cfg.LogLevel = l.String("log_level", "LOG_LEVEL", cfg.LogLevel, validateLogLevel)
	cfg.LogFormat = envconfig.GetEnvString("LOG_FORMAT", "json")
	cfg.SeedFile = envconfig.GetEnvString("RELAYFEED_CONFIG", "")

	l.Done()
	return &cfg
}

func loadTranscoder(l *config.Loader, tc *transcoder.Config) {
	tc.Endpoint = envconfig.GetEnvString("TRANSCODER_URL", "")
	tc.ProbeURL = envconfig.GetEnvString("TRANSCODER_PROBE_URL", "")
	tc.DownloadTemplate = l.String("transcoder_download_template", "TRANSCODER_DOWNLOAD_TEMPLATE", tc.DownloadTemplate, func(s string) error {
		if strings.Count(s, "%s") != 1 {
			return errors.New("must contain exactly one %s")
		}
		return nil
	})
	tc.ResolvePage = l.Bool("transcoder_resolve_page", "TRANSCODER_RESOLVE_PAGE", tc.ResolvePage)
	tc.Timeout = l.Duration("transcoder_timeout", "TRANSCODER_TIMEOUT", tc.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 2*time.Hour)
	})
	tc.Retry.MaxAttempts = l.Int("transcoder_max_attempts", "TRANSCODER_MAX_ATTEMPTS", tc.Retry.MaxAttempts, func(v int) error {
		return config.ValidateIntRange(v, 1, 10)
	})
	tc.Retry.InitialDelay = l.Duration("transcoder_retry_delay", "TRANSCODER_RETRY_DELAY", tc.Retry.InitialDelay, func(d time.Duration) error {
		return config.ValidateDuration(d, 0, 10*time.Minute)
	})
	tc.CRF = l.Int("transcoder_crf", "TRANSCODER_CRF", tc.CRF, func(v int) error {
		return config.ValidateIntRange(v, 0, 51)
	})
	tc.Preset = envconfig.GetEnvString("TRANSCODER_PRESET", tc.Preset)
}

func loadNotifiers(l *config.Loader, logger *slog.Logger, cfg *WorkerConfig) {
	cfg.Telegram.Token = envconfig.GetEnvString("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramAdmins = envconfig.GetEnvInt64List("TELEGRAM_ADMINS")
	cfg.TelegramNotifyChats = envconfig.GetEnvStringList("TELEGRAM_NOTIFY_CHATS", nil)
	cfg.TelegramPostChat = envconfig.GetEnvString("TELEGRAM_POST_CHAT", "")
	cfg.ShareLinkBase = envconfig.GetEnvString("SHARE_LINK_BASE", "")

	cfg.Discord = webhookConfig(logger, "Discord", "DISCORD", "discord.com", "/api/webhooks/", cfg.Discord.Timeout)
	cfg.Slack = notifier.SlackConfig(webhookConfig(logger, "Slack", "SLACK", "hooks.slack.com", "/services/", cfg.Slack.Timeout))

	cfg.Kafka.Brokers = envconfig.GetEnvStringList("KAFKA_BROKERS", nil)
	cfg.Kafka.Topic = envconfig.GetEnvString("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.NotifyMaxConcurrent = l.Int("notify_max_concurrent", "NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.NotifySendTimeout = l.Duration("notify_send_timeout", "NOTIFY_SEND_TIMEOUT", cfg.NotifySendTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 5*time.Second, 10*time.Minute)
	})
}

// webhookConfig reads <PREFIX>_ENABLED and <PREFIX>_WEBHOOK_URL. A webhook that is
// enabled but does not point at the expected https host and path is disabled with a warning.
func webhookConfig(logger *slog.Logger, name, prefix, host, pathPrefix string, timeout time.Duration) notifier.DiscordConfig {
	disabled := notifier.DiscordConfig{Timeout: timeout}
	if !envconfig.GetEnvBool(prefix+"_ENABLED", false) {
		return disabled
	}
	raw := envconfig.GetEnvString(prefix+"_WEBHOOK_URL", "")
	if raw == "" {
		logger.Warn(name + " webhook URL is empty, disabling notifications")
		return disabled
	}
	u, err := url.Parse(raw)
	if err != nil {
		logger.Warn("Invalid "+name+" webhook URL format, disabling notifications", slog.Any("error", err))
		return disabled
	}
	if u.Scheme != "https" {
		logger.Warn(name + " webhook URL must use HTTPS, disabling notifications")
		return disabled
	}
	if u.Host != host {
		logger.Warn("Invalid "+name+" webhook host, disabling notifications", slog.String("host", u.Host))
		return disabled
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		logger.Warn("Invalid "+name+" webhook path, disabling notifications", slog.String("path", u.Path))
		return disabled
	}
	return notifier.DiscordConfig{Enabled: true, WebhookURL: raw, Timeout: timeout}
}

// TelegramRecipients returns the chats that receive dispatch notices.
func (c *WorkerConfig) TelegramRecipients() []string {
	chats := slices.Clone(c.TelegramNotifyChats)
	if len(chats) == 0 {
		for _, id := range c.TelegramAdmins {
			chats = append(chats, strconv.FormatInt(id, 10))
		}
	}
	if c.TelegramPostChat != "" {
		chats = append(chats, c.TelegramPostChat)
	}
	return chats
}

func validateLogLevel(s string) error {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", s)
}
