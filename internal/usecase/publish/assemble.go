package publish

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"digest-feed/internal/config"
	"digest-feed/internal/domain/entity"
)

// BuildEntries converts a run's digests into published entries.
//
// Flat mode produces one entry per digest with the fingerprint as the
// stable ID. Aggregate mode produces a single entry for the whole run,
// grouping the digests by source, with a date-derived ID
// (digest-YYYY-MM-DD) so retention can age it out by date alone.
// Digests are ordered by publish time descending in both modes.
func BuildEntries(digests []entity.Digest, mode string, now time.Time) []entity.PublishedEntry {
	if len(digests) == 0 {
		return []entity.PublishedEntry{}
	}

	ordered := make([]entity.Digest, len(digests))
	copy(ordered, digests)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PublishedAt.Equal(ordered[j].PublishedAt) {
			return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
		}
		return ordered[i].Fingerprint < ordered[j].Fingerprint
	})

	if mode == config.PublishModeAggregate {
		return []entity.PublishedEntry{aggregateEntry(ordered, now)}
	}

	entries := make([]entity.PublishedEntry, 0, len(ordered))
	for _, d := range ordered {
		entries = append(entries, entity.PublishedEntry{
			ID:          d.Fingerprint,
			Title:       d.Title,
			Link:        d.Link,
			SourceName:  d.SourceName,
			Body:        d.Layers.Overall,
			PublishedAt: d.PublishedAt,
		})
	}
	return entries
}

// aggregateEntry renders one run's digests as a single dated entry, grouped
// by source name in alphabetical order.
func aggregateEntry(ordered []entity.Digest, now time.Time) entity.PublishedEntry {
	date := now.UTC().Format("2006-01-02")

	groups := make(map[string][]entity.Digest)
	names := make([]string, 0)
	for _, d := range ordered {
		if _, seen := groups[d.SourceName]; !seen {
			names = append(names, d.SourceName)
		}
		groups[d.SourceName] = append(groups[d.SourceName], d)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", name)
		for _, d := range groups[name] {
			line := d.Layers.OneLine
			if line == "" {
				line = d.Layers.Overall
			}
			fmt.Fprintf(&b, "- %s: %s\n", d.Title, line)
		}
	}

	return entity.PublishedEntry{
		ID:          "digest-" + date,
		Title:       "Digest " + date,
		Body:        b.String(),
		PublishedAt: now,
	}
}
