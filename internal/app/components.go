package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"relayfeed/internal/infra/feed"
	"relayfeed/internal/infra/notifier"
	"relayfeed/internal/infra/sharelink"
	"relayfeed/internal/infra/transcoder"
	workerPkg "relayfeed/internal/infra/worker"
	"relayfeed/internal/usecase/dispatch"
	"relayfeed/internal/usecase/notify"
)

// feedTimeout bounds one feed download including retries of the body read.
const feedTimeout = 30 * time.Second

// NewFeed returns the RSS source for cfg.FeedURL.
func NewFeed(cfg *workerPkg.WorkerConfig) *feed.RSSSource {
	return feed.NewRSSSource(cfg.FeedURL, NewHTTPClient(feedTimeout))
}

// NewGateway returns the transcode service client. Per-attempt timeouts come from
// cfg.Transcoder, so the HTTP client carries none.
func NewGateway(cfg *workerPkg.WorkerConfig) (*transcoder.Client, error) {
	return transcoder.NewClient(cfg.Transcoder, NewHTTPClient(0))
}

// NewLinks returns the share link encoder, or nil when no base is configured.
func NewLinks(cfg *workerPkg.WorkerConfig) (dispatch.LinkEncoder, error) {
	if cfg.ShareLinkBase == "" {
		return nil, nil
	}
	enc, err := sharelink.New(cfg.ShareLinkBase)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// Notifiers holds the notification service and the resources behind its channels.
type Notifiers struct {
	Service  notify.Service
	Channels []notify.Channel
	// Bot is nil when no Telegram token is configured.
	Bot   *tele.Bot
	kafka *notifier.KafkaNotifier
}

// NewNotifiers builds every configured channel. Telegram uses cfg.TelegramRecipients.
func NewNotifiers(cfg *workerPkg.WorkerConfig, logger *slog.Logger) (*Notifiers, error) {
	n := &Notifiers{}

	if cfg.Telegram.Token != "" {
		bot, err := notifier.NewTelegramBot(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		n.Bot = bot
		recipients := cfg.TelegramRecipients()
		transport := notifier.NewTelegramTransport(bot, cfg.Telegram.MessagesPerSecond)
		n.Channels = append(n.Channels, notify.NewTelegramChannel(transport, recipients))
		logger.Info("Telegram channel initialized", slog.Int("recipients", len(recipients)))
	} else {
		logger.Info("Telegram channel disabled")
	}

	if cfg.Discord.Enabled {
		n.Channels = append(n.Channels, notify.NewDiscordChannel(cfg.Discord))
		logger.Info("Discord channel initialized")
	}
	if cfg.Slack.Enabled {
		n.Channels = append(n.Channels, notify.NewSlackChannel(cfg.Slack))
		logger.Info("Slack channel initialized")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notifier.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		n.kafka = notifier.NewKafkaNotifier(producer, cfg.Kafka.Topic)
		n.Channels = append(n.Channels, notify.NewKafkaChannel(n.kafka))
		logger.Info("Kafka channel initialized", slog.String("topic", cfg.Kafka.Topic))
	}

	n.Service = notify.NewService(n.Channels, cfg.NotifyMaxConcurrent, notify.WithSendTimeout(cfg.NotifySendTimeout))
	logger.Info("notification service initialized",
		slog.Int("channels", len(n.Channels)),
		slog.Int("max_concurrent", cfg.NotifyMaxConcurrent))
	return n, nil
}

// Enabled reports channel names that are on.
func (n *Notifiers) Enabled() []string {
	var names []string
	for _, ch := range n.Channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Shutdown drains in-flight notices and closes the Kafka producer.
func (n *Notifiers) Shutdown(ctx context.Context) error {
	var errs []error
	if n.Service != nil {
		errs = append(errs, n.Service.Shutdown(ctx))
	}
	if n.kafka != nil {
		errs = append(errs, n.kafka.Close())
	}
	return errors.Join(errs...)
}

// PipelineOptions are the parts of a pipeline that differ between the worker and relayctl.
type PipelineOptions struct {
	Gateway  dispatch.Gateway
	Notifier dispatch.Notifier // nil disables notices
	Logger   *slog.Logger
}

// NewPipeline builds the dispatch pipeline over store using cfg's feed, schedule and pacing.
func NewPipeline(cfg *workerPkg.WorkerConfig, store *Store, opts PipelineOptions) (*dispatch.Pipeline, error) {
	sched, err := dispatch.ParseSchedule(cfg.PollSchedule)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	links, err := NewLinks(cfg)
	if err != nil {
		return nil, err
	}

	gateway := opts.Gateway
	if gateway == nil {
		client, err := NewGateway(cfg)
		if err != nil {
			return nil, err
		}
		gateway = client
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deps := dispatch.Deps{
		Feed:     NewFeed(cfg),
		Watches:  store.Watches,
		Ledger:   store.Ledger,
		Gateway:  gateway,
		Links:    links,
		Notifier: opts.Notifier,
	}
	return dispatch.NewPipeline(deps, dispatch.Config{
		Schedule:    sched,
		Location:    loc,
		Pause:       cfg.DispatchPause,
		PassTimeout: cfg.PassTimeout,
	}, dispatch.WithLogger(logger))
}
