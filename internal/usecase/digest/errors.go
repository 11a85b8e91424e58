// Package digest implements the digest pipeline use case. It fetches entries
// from configured feed sources, enhances thin entries with extracted article
// content, generates layered summaries through an AI provider, and records
// per-source and per-item outcomes into the run report.
package digest

import "errors"

// Sentinel errors for digest pipeline operations.
var (
	// ErrNoSources indicates that the run started with an empty source list.
	// This aborts the run before any processing happens.
	ErrNoSources = errors.New("no sources configured")

	// ErrFeedFetchFailed marks a source whose feed could not be retrieved
	// or parsed. The run continues with the remaining sources.
	ErrFeedFetchFailed = errors.New("failed to fetch feed from source")

	// ErrNoContent indicates that an entry had neither extractable article
	// content nor a feed-provided body. Such entries cannot be summarized
	// and are recorded as failed.
	ErrNoContent = errors.New("no content available for entry")

	// ErrGenerationFailed indicates that the summarizer could not produce any
	// summary layer for an entry. The pipeline degrades to truncated layers
	// instead of failing the entry.
	ErrGenerationFailed = errors.New("digest generation failed")
)
