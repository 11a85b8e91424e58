package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"digest-feed/internal/resilience/circuitbreaker"
	"digest-feed/internal/resilience/retry"
	"digest-feed/internal/utils/text"
)

// maxPromptRunes bounds the material sent in a single provider call.
// Layer prompts stay well under model context limits regardless of how much
// an article page yielded.
const maxPromptRunes = 10000

// ClaudeConfig holds configuration parameters for the Claude provider.
type ClaudeConfig struct {
	// Model is the Claude API model identifier.
	Model string

	// MaxTokens caps the completion length per call.
	MaxTokens int

	// Timeout is the maximum duration for a single generation API call.
	Timeout time.Duration
}

// DefaultClaudeConfig returns the production defaults for the Claude provider.
func DefaultClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// Claude implements the Generator interface against Anthropic's Messages
// API, with the shared breaker and retry policy wrapped around each call.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryPolicy     retry.Policy
	config          ClaudeConfig
	metricsRecorder LayerMetricsRecorder
}

// NewClaude creates a new Claude provider with the given API key.
// It automatically configures circuit breaker, retry logic, and metrics
// recording.
func NewClaude(apiKey string) *Claude {
	config := DefaultClaudeConfig()

	slog.Info("Initialized Claude provider",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ModelAPIConfig("claude-api")),
		retryPolicy:     retry.SummarizerPolicy(),
		config:          config,
		metricsRecorder: NewPrometheusLayerMetrics(),
	}
}

// Generate produces one completion, retrying transient API failures
// through the breaker until the per-call timeout runs out.
func (c *Claude) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.Do(ctx, c.retryPolicy, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGenerate(ctx, systemPrompt, userPrompt)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, rejecting call",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("claude generate failed after retries: %w", retryErr)
	}

	return result, nil
}

// doGenerate performs the actual API call without retry or circuit breaker.
func (c *Claude) doGenerate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// Request ID ties the start/finish log lines of one call together.
	requestID := uuid.New().String()

	inputRunes := text.CountRunes(userPrompt)
	if inputRunes > maxPromptRunes {
		userPrompt = text.TruncateRunes(userPrompt, maxPromptRunes)
		slog.Warn("prompt truncated for claude api",
			slog.String("request_id", requestID),
			slog.Int("original_runes", inputRunes),
			slog.Int("max_runes", maxPromptRunes))
		inputRunes = maxPromptRunes
	}

	slog.InfoContext(ctx, "Starting generation",
		slog.String("request_id", requestID),
		slog.String("provider", "claude"),
		slog.Int("input_runes", inputRunes))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(userPrompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "Claude reply carried no content blocks",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude reply carried no content blocks")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "Claude reply was not a text block",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude reply was not a text block")
	}

	reply := textBlock.Text

	slog.InfoContext(ctx, "Generation completed",
		slog.String("request_id", requestID),
		slog.Int("reply_runes", text.CountRunes(reply)),
		slog.Duration("duration", duration))

	c.metricsRecorder.RecordCallDuration("claude", duration)

	return reply, nil
}
