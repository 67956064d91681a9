package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig contains configuration for the Telegram bot.
type TelegramConfig struct {
	// Token is the bot API token issued by @BotFather
	Token string

	// PollTimeout is the long-poll timeout used when receiving commands
	PollTimeout time.Duration

	// MessagesPerSecond caps outgoing messages for the whole process
	MessagesPerSecond float64

	// Offline skips the getMe call at construction (tests only)
	Offline bool
}

// NewTelegramBot creates the bot shared by the notification transport and the command handler.
func NewTelegramBot(cfg TelegramConfig) (*tele.Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// messageSender is the subset of *tele.Bot used for delivery.
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// chatRecipient addresses a chat by numeric id or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// TelegramTransport sends HTML messages through the Bot API.
type TelegramTransport struct {
	bot         messageSender
	rateLimiter *RateLimiter
}

// NewTelegramTransport wraps bot. messagesPerSecond <= 0 defaults to 1.
func NewTelegramTransport(bot messageSender, messagesPerSecond float64) *TelegramTransport {
	if messagesPerSecond <= 0 {
		messagesPerSecond = 1
	}
	return &TelegramTransport{
		bot:         bot,
		rateLimiter: NewRateLimiter(messagesPerSecond, 1),
	}
}

// SendText sends text (Telegram HTML) to recipient.
func (t *TelegramTransport) SendText(ctx context.Context, recipient, text string) error {
	return t.send(ctx, recipient, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
}

// SendTextWithButton sends text with a single inline URL button underneath.
func (t *TelegramTransport) SendTextWithButton(ctx context.Context, recipient, text, label, url string) error {
	markup := &tele.ReplyMarkup{}
	markup.Inline(tele.Row{tele.Btn{Text: label, URL: url}})

	return t.send(ctx, recipient, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
}

func (t *TelegramTransport) send(ctx context.Context, recipient, text string, opts *tele.SendOptions) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return errors.New("telegram recipient is empty")
	}
	if err := t.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	if _, err := t.bot.Send(chatRecipient(recipient), text, opts); err != nil {
		return fmt.Errorf("telegram send to %s: %w", recipient, err)
	}
	return nil
}
