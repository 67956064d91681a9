// Package notify fans dispatch outcomes out to operator notification channels
// (Telegram, Discord, Slack, Kafka) with per-channel isolation, circuit breaking
// and bounded concurrency.
package notify

import (
	"context"

	"relayfeed/internal/domain/entity"
)

// Channel is one notification destination.
//
// Implementations must be safe for concurrent use, respect ctx cancellation,
// and handle their own rate limiting and retries. A returned error counts
// towards the channel's circuit breaker.
type Channel interface {
	// Name returns the lowercase channel identifier used in logs, metrics and health output.
	Name() string

	// IsEnabled reports whether the channel is configured. Disabled channels are skipped.
	IsEnabled() bool

	// Send delivers a notice about record. A disabled channel returns ErrChannelDisabled.
	Send(ctx context.Context, record *entity.DispatchRecord) error
}
