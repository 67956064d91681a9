package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"relayfeed/internal/domain/entity"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackNotifier sends dispatch notices to Slack via Incoming Webhook.
type SlackNotifier struct {
	config  SlackConfig
	webhook *webhook
}

// NewSlackNotifier creates a new SlackNotifier limited to 1 request/second (Slack webhook limit).
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		webhook: &webhook{
			service:     "Slack",
			url:         config.WebhookURL,
			httpClient:  &http.Client{Timeout: config.Timeout},
			rateLimiter: NewRateLimiter(1.0, 1),
			maxAttempts: 2,
			baseDelay:   5 * time.Second,
		},
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string           `json:"type"`               // "section", "context", "actions"
	Text     *SlackTextObject `json:"text,omitempty"`     // Text content (for section)
	Elements []any            `json:"elements,omitempty"` // SlackTextObject (context) or SlackButton (actions)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

// SlackButton is a link button inside an actions block.
type SlackButton struct {
	Type string          `json:"type"` // always "button"
	Text SlackTextObject `json:"text"`
	URL  string          `json:"url"`
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// buildBlockKitPayload renders record as Block Kit: a section with title and status,
// a download button for successful dispatches, and a context line.
func (s *SlackNotifier) buildBlockKitPayload(record *entity.DispatchRecord) SlackWebhookPayload {
	status := "✅ Uploaded"
	if record.Outcome != entity.OutcomeSuccess {
		status = "❌ Failed: " + record.FailureReason
	}

	fallbackText := truncateText(fmt.Sprintf("%s - %s", record.Title, status), maxFallbackLength, slackTruncationSuffix)

	title := record.Title
	if record.SourceLink != "" {
		title = fmt.Sprintf("<%s|%s>", record.SourceLink, record.Title)
	}
	sectionText := truncateText(fmt.Sprintf("*%s*\n\n%s", title, status), maxSectionTextLength, slackTruncationSuffix)

	blocks := []SlackBlock{{
		Type: "section",
		Text: &SlackTextObject{Type: "mrkdwn", Text: sectionText},
	}}

	if record.Outcome == entity.OutcomeSuccess && record.ShareableLink != "" {
		blocks = append(blocks, SlackBlock{
			Type: "actions",
			Elements: []any{SlackButton{
				Type: "button",
				Text: SlackTextObject{Type: "plain_text", Text: "📥 Download"},
				URL:  record.ShareableLink,
			}},
		})
	}

	contextText := record.SubmittedAt.Format(time.RFC3339)
	if record.MatchedTitle != "" {
		contextText = fmt.Sprintf("%s • %s", record.MatchedTitle, contextText)
	}
	blocks = append(blocks, SlackBlock{
		Type:     "context",
		Elements: []any{SlackTextObject{Type: "mrkdwn", Text: contextText}},
	})

	return SlackWebhookPayload{Text: fallbackText, Blocks: blocks}
}

// NotifyDispatch sends a Slack notification for a completed dispatch.
func (s *SlackNotifier) NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error {
	return s.webhook.send(ctx, record.EntryKey, s.buildBlockKitPayload(record))
}
