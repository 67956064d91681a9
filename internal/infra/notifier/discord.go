package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"relayfeed/internal/domain/entity"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	// Enabled indicates whether Discord notifications are enabled
	Enabled bool

	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration
}

// DiscordNotifier sends dispatch notices to Discord via webhook.
type DiscordNotifier struct {
	config  DiscordConfig
	webhook *webhook
}

// NewDiscordNotifier creates a new DiscordNotifier.
// Requests are limited to 0.5/s with a burst of 3 (Discord allows 30 webhook calls per minute).
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		webhook: &webhook{
			service:     "Discord",
			url:         config.WebhookURL,
			httpClient:  &http.Client{Timeout: config.Timeout},
			rateLimiter: NewRateLimiter(0.5, 3),
			maxAttempts: 2,
			baseDelay:   5 * time.Second,
		},
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents a Discord embed message.
type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      DiscordEmbedFooter  `json:"footer"`
	Timestamp   string              `json:"timestamp"`
}

// DiscordEmbedField is a name/value pair rendered inside an embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	// Discord limits
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxFieldValueLength  = 1024
	truncationSuffix     = "..."

	discordGreenColor = 5763719  // #57F287
	discordRedColor   = 15548997 // #ED4245

	footerText = "relayfeed"
)

// buildEmbedPayload renders record as a single embed. A successful dispatch links the
// title to the shareable link; a failed one links to the source and shows the reason.
func (d *DiscordNotifier) buildEmbedPayload(record *entity.DispatchRecord) DiscordWebhookPayload {
	embed := DiscordEmbed{
		Title:     truncateText(record.Title, maxTitleLength, ""),
		Footer:    DiscordEmbedFooter{Text: footerText},
		Timestamp: record.SubmittedAt.Format(time.RFC3339),
	}

	if record.Outcome == entity.OutcomeSuccess {
		embed.Color = discordGreenColor
		embed.URL = record.ShareableLink
		embed.Description = "Transcoded and uploaded."
		if record.ShareableLink != "" {
			embed.Description = fmt.Sprintf("Transcoded and uploaded.\n[📥 Download](%s)", record.ShareableLink)
		}
	} else {
		embed.Color = discordRedColor
		embed.URL = record.SourceLink
		embed.Description = truncateText("Dispatch failed: "+record.FailureReason, maxDescriptionLength, truncationSuffix)
	}

	if record.MatchedTitle != "" {
		embed.Fields = append(embed.Fields, DiscordEmbedField{
			Name:   "Watch title",
			Value:  truncateText(record.MatchedTitle, maxFieldValueLength, truncationSuffix),
			Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, DiscordEmbedField{Name: "Entry", Value: record.EntryKey, Inline: true})

	return DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}
}

// NotifyDispatch sends a Discord notification for a completed dispatch.
func (d *DiscordNotifier) NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error {
	return d.webhook.send(ctx, record.EntryKey, d.buildEmbedPayload(record))
}
