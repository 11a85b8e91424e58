package entity

import (
	"regexp"
	"time"
)

// PublishedEntry is the unit written to the published-output store.
// In flat mode there is one entry per Digest and ID is the digest fingerprint;
// in aggregate mode there is one entry per run, grouping the run's digests by
// source, and ID is date-derived (digest-YYYY-MM-DD). Retention decisions key
// off ID first and PublishedAt second.
type PublishedEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	SourceName  string    `json:"source_name,omitempty"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

var publishedIDDate = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// DerivedDate returns the date used for retention decisions: a date embedded
// in the stable ID when one is present, otherwise the publish timestamp.
// The boolean is false only when neither yields a usable date; such entries
// are kept rather than guessed at.
func (p PublishedEntry) DerivedDate() (time.Time, bool) {
	if m := publishedIDDate.FindString(p.ID); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t, true
		}
	}
	if !p.PublishedAt.IsZero() {
		return p.PublishedAt, true
	}
	return time.Time{}, false
}
