// Package notifier delivers dispatch outcome notices to operators.
// It provides webhook notifiers (Discord, Slack), a Kafka event publisher,
// a Telegram transport, and a no-op notifier for when a channel is disabled.
package notifier

import (
	"context"

	"relayfeed/internal/domain/entity"
)

// Notifier announces a completed dispatch.
// Implementations handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyDispatch sends a notice about record. record must not be nil.
	// A non-nil error means the notice was not delivered after all retry attempts.
	NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error
}

// Transport delivers chat messages to individual recipients.
// A recipient is a chat id or a public channel username such as "@releases".
type Transport interface {
	SendText(ctx context.Context, recipient, text string) error
	SendTextWithButton(ctx context.Context, recipient, text, label, url string) error
}
