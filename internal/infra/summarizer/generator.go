// Package summarizer provides AI-powered layer generation for digests.
// It includes adapters for Claude (Anthropic) and OpenAI APIs with reliability
// patterns, and a LayerSummarizer that composes provider calls into the
// paragraph, section, overall, and one-line summary layers with per-layer
// degradation.
package summarizer

import "context"

// Generator is the single-call boundary to an AI text provider.
// Implementations own their transport resilience (timeout, retry, circuit
// breaker); a returned error means the call ultimately failed.
type Generator interface {
	// Generate produces one free-text completion. systemPrompt carries the
	// role and format instructions, userPrompt carries only the material to
	// work from.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
