package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"digest-feed/internal/report"
)

// DiscordConfig configures webhook delivery to a Discord channel.
type DiscordConfig struct {
	// Enabled gates registration of the notifier at startup.
	Enabled bool

	// WebhookURL carries the channel token; treat it as a secret.
	WebhookURL string

	// Timeout bounds a single webhook POST.
	Timeout time.Duration
}

// DiscordNotifier posts run summaries to a Discord channel via webhook.
// The rate limiter matches the Discord webhook limit of 30 requests per
// minute (0.5 req/s) with a small burst allowance.
type DiscordNotifier struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter

	retryBaseDelay time.Duration
}

func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    NewRateLimiter(0.5, 3),
		retryBaseDelay: 5 * time.Second,
	}
}

// Wire shapes for the Discord webhook API.

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Footer      discordFooter `json:"footer"`
	Timestamp   string        `json:"timestamp"`
}

type discordFooter struct {
	Text string `json:"text"`
}

const (
	// Discord caps embed descriptions at 4096 characters.
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	// Discord green (#57F287) and red (#ED4245)
	discordGreenColor = 5763719
	discordRedColor   = 15548997
)

// buildEmbedPayload renders a run summary as one embed: headline title,
// the textual summary as description, color keyed to the run outcome, and
// the finish time as the embed timestamp.
func (d *DiscordNotifier) buildEmbedPayload(summary report.Summary) discordPayload {
	title := "Digest run completed"
	color := discordGreenColor
	if summary.Failed() {
		title = "Digest run completed with failures"
		color = discordRedColor
	}

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: truncateText(summary.Text(), maxDescriptionLength, truncationSuffix),
			Color:       color,
			Footer:      discordFooter{Text: "digest-feed"},
			Timestamp:   summary.FinishedAt.UTC().Format(time.RFC3339),
		}},
	}
}

// sendWebhookRequest performs one webhook POST and classifies the response:
// 429 becomes RateLimitError, other 4xx ClientError, 5xx ServerError.
func (d *DiscordNotifier) sendWebhookRequest(ctx context.Context, summary report.Summary) error {
	resp, body, err := postWebhook(ctx, d.httpClient, d.config.WebhookURL, d.buildEmbedPayload(summary))
	if err != nil {
		return err
	}
	return classifyResponse("Discord", resp, body)
}

// NotifyRun implements the Notifier interface: rate-limit, then deliver
// with the shared retry loop.
func (d *DiscordNotifier) NotifyRun(ctx context.Context, summary report.Summary) error {
	if err := d.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return sendWithRetry(ctx, "Discord", d.retryBaseDelay, func(ctx context.Context) error {
		return d.sendWebhookRequest(ctx, summary)
	})
}
