// Package scraper pulls RSS/Atom feeds and normalizes their items into
// pipeline entries. Parsing is gofeed's job; this package adds the
// circuit breaker and retry wrapping around it.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/resilience/circuitbreaker"
	"digest-feed/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// userAgent identifies the pipeline to feed hosts.
const userAgent = "DigestFeedBot"

// RSSFetcher fetches one source's feed and returns its items as entries.
// Transient failures retry; a persistently failing host trips the breaker
// so the rest of the run is not slowed down by it.
type RSSFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryPolicy    retry.Policy
	logger         *slog.Logger

	// now supplies the publish-time fallback for entries without a date.
	now func() time.Time
}

// NewRSSFetcher builds a fetcher on the given HTTP client, wrapping each
// fetch in the standard feed-fetch breaker and the given retry policy.
// Callers without their own tuning pass retry.FeedFetchPolicy(). A policy
// without an OnRetry hook gets the standard retry logging attached.
func NewRSSFetcher(client *http.Client, policy retry.Policy, logger *slog.Logger) *RSSFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.OnRetry == nil {
		policy.OnRetry = retry.LogRetries(logger, "feed_fetch")
	}

	return &RSSFetcher{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryPolicy:    policy,
		logger:         logger,
		now:            time.Now,
	}
}

// Fetch downloads and parses the source's feed, retrying through the
// breaker. Returned entries carry the source name and normalized publish
// times.
func (f *RSSFetcher) Fetch(ctx context.Context, src entity.Source) ([]entity.Entry, error) {
	var entries []entity.Entry

	retryErr := retry.Do(ctx, f.retryPolicy, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, src)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				f.logger.Warn("feed fetch circuit breaker open, rejecting call",
					slog.String("service", "feed-fetch"),
					slog.String("url", src.Endpoint),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}

		entries = cbResult.([]entity.Entry)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return entries, nil
}

// doFetch is the bare fetch-and-parse, with no resilience wrapping.
func (f *RSSFetcher) doFetch(ctx context.Context, src entity.Source) ([]entity.Entry, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(src.Endpoint, ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]entity.Entry, 0, len(feed.Items))
	for _, it := range feed.Items {
		entries = append(entries, f.normalize(src, it))
	}

	return entries, nil
}

// normalize maps a parsed feed item onto the pipeline's entry shape.
// Missing publish dates fall back to the fetch instant so entries are
// never dropped for a bad date. The raw body prefers full content over
// the summary field.
func (f *RSSFetcher) normalize(src entity.Source, it *gofeed.Item) entity.Entry {
	pubAt := f.now()
	switch {
	case it.PublishedParsed != nil:
		pubAt = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		pubAt = *it.UpdatedParsed
	}

	body := it.Content
	if body == "" {
		body = it.Description
	}

	return entity.Entry{
		SourceName:  src.Name,
		Title:       it.Title,
		Link:        it.Link,
		RawBody:     body,
		PublishedAt: pubAt,
	}
}
