package summarizer

import (
	"context"

	"digest-feed/internal/utils/text"
)

// NoOp is a generator that returns the prompt material unchanged, truncated
// to a reasonable length. This is useful for development and tests when no
// AI provider is configured: the coarse layers come out as readable excerpts
// and the structured layers degrade cleanly.
type NoOp struct{}

// NewNoOp creates a new NoOp generator.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Generate returns the user prompt truncated to the first 500 characters.
// It never fails.
func (n *NoOp) Generate(_ context.Context, _ string, userPrompt string) (string, error) {
	const maxLength = 500
	return text.TruncateRunes(userPrompt, maxLength), nil
}
