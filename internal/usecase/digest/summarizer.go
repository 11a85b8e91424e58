package digest

import (
	"context"

	"digest-feed/internal/domain/entity"
)

// Summarizer is an interface for generating the layered summary of one entry.
// Implementations call an AI provider once per layer and are expected to
// tolerate partial failure: a layer that cannot be generated is left empty
// (or filled by truncation for the coarse layers) rather than failing the
// whole entry.
type Summarizer interface {
	// Summarize produces all summary layers for the given input.
	//
	// An error is returned only when no layer could be generated at all,
	// wrapping ErrGenerationFailed. The pipeline then falls back to
	// truncation-based degraded layers, so a provider outage degrades output
	// quality without losing entries.
	Summarize(ctx context.Context, in SummarizeInput) (entity.DigestLayers, error)
}

// SummarizeInput carries the material a Summarizer works from.
// Content is the best text available for the entry: the extracted article
// when extraction succeeded, otherwise the feed-provided body. Paragraphs is
// empty when the content did not come from extraction.
type SummarizeInput struct {
	Title      string
	SourceName string
	Content    string
	Paragraphs []string
}
