// Package publish implements the publishing use case: converting a run's
// digests into published entries, merging them with previously published
// output under a rolling retention horizon, and swapping the result into
// the published store.
package publish

import (
	"sort"
	"time"

	"digest-feed/internal/domain/entity"
)

// startOfUTCDay truncates a timestamp to midnight UTC.
func startOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Merge combines the current run's entries with previously published
// entries. Pure: no I/O, no clock reads.
//
// Previous entries are dropped when their derived date (date embedded in
// the stable ID when parseable, else the publish timestamp) is older than
// startOfUTCDay(now) - horizonDays, or when their ID collides with a
// current entry (the current run always wins, so a re-run never duplicates
// a same-day entry). Entries whose date cannot be determined are kept.
// The result is sorted by publish time descending with ID as the
// deterministic tiebreak.
func Merge(current, previous []entity.PublishedEntry, horizonDays int, now time.Time) []entity.PublishedEntry {
	cutoff := startOfUTCDay(now).AddDate(0, 0, -horizonDays)

	currentIDs := make(map[string]struct{}, len(current))
	for _, e := range current {
		currentIDs[e.ID] = struct{}{}
	}

	merged := make([]entity.PublishedEntry, 0, len(current)+len(previous))
	merged = append(merged, current...)

	for _, e := range previous {
		if _, collides := currentIDs[e.ID]; collides {
			continue
		}
		if date, ok := e.DerivedDate(); ok && date.Before(cutoff) {
			continue
		}
		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].PublishedAt.Equal(merged[j].PublishedAt) {
			return merged[i].PublishedAt.After(merged[j].PublishedAt)
		}
		return merged[i].ID < merged[j].ID
	})

	return merged
}
