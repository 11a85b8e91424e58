// Package publisher renders the published-output state as an RSS 2.0
// document next to the state store, so any feed reader can subscribe to
// the digest output.
package publisher

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"digest-feed/internal/domain/entity"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link,omitempty"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link,omitempty"`
	Description string  `xml:"description"`
	Category    string  `xml:"category,omitempty"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
}

// rssGUID carries isPermaLink="false": entry IDs are fingerprints or
// date-derived identifiers, not URLs.
type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Render serializes the entries as an RSS 2.0 document. The entry order is
// preserved; callers pass the merged, already sorted state.
func Render(entries []entity.PublishedEntry, cfg FeedConfig, now time.Time) ([]byte, error) {
	items := make([]rssItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, rssItem{
			Title:       e.Title,
			Link:        e.Link,
			Description: e.Body,
			Category:    e.SourceName,
			GUID:        rssGUID{IsPermaLink: "false", Value: e.ID},
			PubDate:     e.PublishedAt.UTC().Format(time.RFC1123Z),
		})
	}

	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         cfg.Title,
			Link:          cfg.Link,
			Description:   cfg.Description,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render feed: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// FeedFile writes the rendered feed to a file, replacing it atomically the
// same way the file store replaces its state.
type FeedFile struct {
	path   string
	config FeedConfig

	now func() time.Time
}

func NewFeedFile(path string, cfg FeedConfig) *FeedFile {
	return &FeedFile{path: path, config: cfg, now: time.Now}
}

func (f *FeedFile) WriteFeed(_ context.Context, entries []entity.PublishedEntry) error {
	data, err := Render(entries, f.config, f.now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write feed: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}
