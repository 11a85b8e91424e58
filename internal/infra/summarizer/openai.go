package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"digest-feed/internal/resilience/circuitbreaker"
	"digest-feed/internal/resilience/retry"
	"digest-feed/internal/utils/text"
)

// OpenAIConfig holds configuration parameters for the OpenAI provider.
type OpenAIConfig struct {
	// Model is the OpenAI API model identifier.
	Model string

	// MaxTokens caps the completion length per call.
	MaxTokens int

	// Timeout is the maximum duration for a single generation API call.
	Timeout time.Duration
}

// DefaultOpenAIConfig returns the production defaults for the OpenAI provider.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:     openai.GPT3Dot5Turbo,
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *OpenAIConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	return nil
}

// OpenAI implements the Generator interface against the chat completions
// API, with the shared breaker and retry policy wrapped around each call.
type OpenAI struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryPolicy     retry.Policy
	config          OpenAIConfig
	metricsRecorder LayerMetricsRecorder
}

// NewOpenAI creates a new OpenAI provider with the given API key.
func NewOpenAI(apiKey string, config OpenAIConfig) (*OpenAI, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OpenAI configuration: %w", err)
	}

	slog.Info("Initialized OpenAI provider",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &OpenAI{
		client:          openai.NewClient(apiKey),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ModelAPIConfig("openai-api")),
		retryPolicy:     retry.SummarizerPolicy(),
		config:          config,
		metricsRecorder: NewPrometheusLayerMetrics(),
	}, nil
}

// Generate produces one completion, retrying transient API failures
// through the breaker until the per-call timeout runs out.
func (o *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.Do(ctx, o.retryPolicy, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doGenerate(ctx, systemPrompt, userPrompt)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, rejecting call",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai generate failed after retries: %w", retryErr)
	}

	return result, nil
}

// doGenerate performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doGenerate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	inputRunes := text.CountRunes(userPrompt)
	if inputRunes > maxPromptRunes {
		userPrompt = text.TruncateRunes(userPrompt, maxPromptRunes)
		slog.Warn("prompt truncated for openai api",
			slog.Int("original_runes", inputRunes),
			slog.Int("max_runes", maxPromptRunes))
		inputRunes = maxPromptRunes
	}

	slog.InfoContext(ctx, "Starting generation",
		slog.String("provider", "openai"),
		slog.Int("input_runes", inputRunes))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Generation failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}

	// Guard the array access; a malformed response must not panic the worker.
	if len(resp.Choices) == 0 {
		slog.ErrorContext(ctx, "OpenAI reply carried no choices",
			slog.Duration("duration", duration))
		return "", fmt.Errorf("openai reply carried no choices")
	}

	reply := resp.Choices[0].Message.Content

	slog.InfoContext(ctx, "Generation completed",
		slog.Int("reply_runes", text.CountRunes(reply)),
		slog.Duration("duration", duration))

	o.metricsRecorder.RecordCallDuration("openai", duration)

	return reply, nil
}
