package entity

import "time"

// Digest is the layered summary produced for one entry. A Digest is immutable
// once produced; it is written to the derived cache keyed by Fingerprint and
// reused verbatim on later runs while the cache record is fresh.
type Digest struct {
	Fingerprint string       `json:"fingerprint"`
	Title       string       `json:"title"`
	Link        string       `json:"link"`
	SourceName  string       `json:"source_name"`
	PublishedAt time.Time    `json:"published_at"`
	ContentMeta ContentMeta  `json:"content_meta"`
	Layers      DigestLayers `json:"layers"`
}

// ContentMeta records how the digest's input text was obtained.
// OK is false when extended-content extraction failed and the pipeline fell
// back to the feed-provided body; Error carries the extraction failure.
type ContentMeta struct {
	OK        bool   `json:"ok"`
	WordCount int    `json:"word_count"`
	Error     string `json:"error,omitempty"`
}

// DigestLayers holds the summary at each granularity.
// A degraded digest has empty Paragraphs and Section, with Overall and OneLine
// truncated from the raw content instead of generated.
type DigestLayers struct {
	Paragraphs []ParagraphSummary `json:"paragraphs"`
	Section    string             `json:"section"`
	Overall    string             `json:"overall"`
	OneLine    string             `json:"one_line"`
}

// ParagraphSummary is the finest summary layer: one titled summary per source
// paragraph, indexed by the paragraph's position in the extracted content.
type ParagraphSummary struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Degraded reports whether the layers were produced by fallback truncation
// rather than generation.
func (l DigestLayers) Degraded() bool {
	return len(l.Paragraphs) == 0 && l.Section == ""
}
