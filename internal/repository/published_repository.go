package repository

import (
	"context"

	"digest-feed/internal/domain/entity"
)

// PublishedRepository is the persistence port for the published-output store.
// The pipeline reads the previous run's entries, merges them with the current
// run, and swaps the whole state back in one operation.
type PublishedRepository interface {
	// Load returns every previously published entry. A store that has never
	// been written to returns an empty slice, not an error.
	Load(ctx context.Context) ([]entity.PublishedEntry, error)

	// Replace swaps the stored state for the given entries atomically.
	// Readers never observe a partially replaced state.
	Replace(ctx context.Context, entries []entity.PublishedEntry) error
}
