package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"
)

// Entry is a single normalized feed item produced by the feed parser.
// The parser supplies defaults for missing fields, so by the time an Entry
// reaches the pipeline every field is populated: a missing or unparsable
// publish date becomes the fetch instant (entries are never dropped for a bad
// date, only by date-filter policies downstream).
type Entry struct {
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	RawBody     string    `json:"raw_body"`
	PublishedAt time.Time `json:"published_at"`
}

// Fingerprint returns the deterministic content identity for the entry,
// derived from title, canonical link and the publish instant. Two entries with
// the same fingerprint are the same logical item across runs; the fingerprint
// keys the derived cache and anchors idempotence for the whole pipeline.
func (e Entry) Fingerprint() string {
	h := sha256.New()
	_, _ = io.WriteString(h, e.Title)
	h.Write([]byte{0})
	_, _ = io.WriteString(h, e.Link)
	h.Write([]byte{0})
	_, _ = io.WriteString(h, e.PublishedAt.UTC().Format(time.RFC3339))
	return hex.EncodeToString(h.Sum(nil))
}
