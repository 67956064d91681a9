package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/infra/notifier"
)

// DownloadButtonLabel is the caption of the inline button attached to successful notices.
const DownloadButtonLabel = "📥 Download"

// TelegramChannel sends one message per recipient chat.
// A failure for one recipient does not stop delivery to the others.
type TelegramChannel struct {
	transport  notifier.Transport
	recipients []string
}

// NewTelegramChannel creates the channel. Blank and duplicate recipients are dropped.
// A nil transport or an empty recipient list yields a disabled channel.
func NewTelegramChannel(transport notifier.Transport, recipients []string) *TelegramChannel {
	seen := make(map[string]struct{}, len(recipients))
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		cleaned = append(cleaned, r)
	}
	return &TelegramChannel{transport: transport, recipients: cleaned}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) IsEnabled() bool {
	return c.transport != nil && len(c.recipients) > 0
}

// Recipients returns the configured chats in delivery order.
func (c *TelegramChannel) Recipients() []string {
	out := make([]string, len(c.recipients))
	copy(out, c.recipients)
	return out
}

// Send renders record with FormatNotice and delivers it to every recipient.
// Successful dispatches with a shareable link carry a download button.
// The returned error joins every per-recipient failure.
func (c *TelegramChannel) Send(ctx context.Context, record *entity.DispatchRecord) error {
	if c.transport == nil {
		return ErrChannelDisabled
	}
	if len(c.recipients) == 0 {
		return ErrNoRecipients
	}
	if record == nil {
		return ErrInvalidRecord
	}

	text := FormatNotice(record)
	withButton := record.Outcome == entity.OutcomeSuccess && record.ShareableLink != ""

	var errs []error
	for _, recipient := range c.recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var err error
		if withButton {
			err = c.transport.SendTextWithButton(ctx, recipient, text, DownloadButtonLabel, record.ShareableLink)
		} else {
			err = c.transport.SendText(ctx, recipient, text)
		}
		if err != nil {
			slog.Warn("telegram notice failed for recipient",
				slog.String("recipient", recipient),
				slog.String("entry_key", record.EntryKey),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
