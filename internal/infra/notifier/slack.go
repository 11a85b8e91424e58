package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"digest-feed/internal/report"
)

// SlackConfig configures webhook delivery to a Slack channel.
type SlackConfig struct {
	// Enabled gates registration of the notifier at startup.
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL; treat it as a secret.
	WebhookURL string

	// Timeout bounds a single webhook POST.
	Timeout time.Duration
}

// SlackNotifier posts run summaries to Slack via Incoming Webhook.
// The rate limiter matches the Slack webhook limit of 1 message per second.
type SlackNotifier struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter

	retryBaseDelay time.Duration
}

func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    NewRateLimiter(1.0, 1),
		retryBaseDelay: 5 * time.Second,
	}
}

// Wire shapes for the Slack Block Kit webhook API.

type slackPayload struct {
	Text   string       `json:"text"` // fallback text, required
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"` // "section" or "context"
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	// Slack Block Kit limits.
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// buildBlockKitPayload renders a run summary as one section block with the
// outcome headline and counts, plus a context block with the finish time.
func (s *SlackNotifier) buildBlockKitPayload(summary report.Summary) slackPayload {
	headline := "Digest run completed"
	if summary.Failed() {
		headline = "Digest run completed with failures"
	}

	fallbackText := fmt.Sprintf("%s: %d/%d items successful",
		headline, summary.Items.Successful, summary.Items.Total)
	fallbackText = truncateText(fallbackText, maxFallbackLength, slackTruncationSuffix)

	sectionText := fmt.Sprintf("*%s*\n\n%s", headline, summary.Text())
	sectionText = truncateText(sectionText, maxSectionTextLength, slackTruncationSuffix)

	contextText := fmt.Sprintf("digest-feed • %s",
		summary.FinishedAt.UTC().Format(time.RFC3339))

	return slackPayload{
		Text: fallbackText,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: sectionText},
			},
			{
				Type: "context",
				Elements: []slackText{
					{Type: "mrkdwn", Text: contextText},
				},
			},
		},
	}
}

// sendWebhookRequest performs one webhook POST and classifies the response:
// 429 becomes RateLimitError, other 4xx ClientError, 5xx ServerError.
func (s *SlackNotifier) sendWebhookRequest(ctx context.Context, summary report.Summary) error {
	resp, body, err := postWebhook(ctx, s.httpClient, s.config.WebhookURL, s.buildBlockKitPayload(summary))
	if err != nil {
		return err
	}
	return classifyResponse("Slack", resp, body)
}

// NotifyRun implements the Notifier interface: rate-limit, then deliver
// with the shared retry loop.
func (s *SlackNotifier) NotifyRun(ctx context.Context, summary report.Summary) error {
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return sendWithRetry(ctx, "Slack", s.retryBaseDelay, func(ctx context.Context) error {
		return s.sendWebhookRequest(ctx, summary)
	})
}
