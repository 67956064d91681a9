package notify

import (
	"context"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/infra/notifier"
)

// NotifierChannel adapts an infra notifier (Discord or Slack webhook, Kafka topic)
// to Channel. A nil notifier makes the channel disabled.
type NotifierChannel struct {
	name     string
	notifier notifier.Notifier
}

// NewNotifierChannel names n for logs, metrics and health output.
func NewNotifierChannel(name string, n notifier.Notifier) *NotifierChannel {
	return &NotifierChannel{name: name, notifier: n}
}

// NewDiscordChannel posts to the configured webhook, or is disabled.
func NewDiscordChannel(cfg notifier.DiscordConfig) *NotifierChannel {
	if !cfg.Enabled {
		return NewNotifierChannel("discord", nil)
	}
	return NewNotifierChannel("discord", notifier.NewDiscordNotifier(cfg))
}

// NewSlackChannel posts to the configured webhook, or is disabled.
func NewSlackChannel(cfg notifier.SlackConfig) *NotifierChannel {
	if !cfg.Enabled {
		return NewNotifierChannel("slack", nil)
	}
	return NewNotifierChannel("slack", notifier.NewSlackNotifier(cfg))
}

// NewKafkaChannel publishes outcome events for downstream consumers.
func NewKafkaChannel(k *notifier.KafkaNotifier) *NotifierChannel {
	if k == nil {
		return NewNotifierChannel("kafka", nil)
	}
	return NewNotifierChannel("kafka", k)
}

func (c *NotifierChannel) Name() string { return c.name }

func (c *NotifierChannel) IsEnabled() bool { return c.notifier != nil }

func (c *NotifierChannel) Send(ctx context.Context, record *entity.DispatchRecord) error {
	if c.notifier == nil {
		return ErrChannelDisabled
	}
	if record == nil {
		return ErrInvalidRecord
	}
	return c.notifier.NotifyDispatch(ctx, record)
}
