package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digest-feed/internal/cache"
	"digest-feed/internal/domain/entity"
	"digest-feed/internal/observability/metrics"
	"digest-feed/internal/observability/tracing"
	"digest-feed/internal/report"
	"digest-feed/internal/utils/text"

	"go.opentelemetry.io/otel/attribute"
)

// Degraded-layer budgets. They match the default overall and one-line layer
// limits so fallback output stays inside the same envelope as generated
// output.
const (
	degradedOverallRunes = 900
	degradedOneLineRunes = 120
)

// processEntry runs the digest state machine for one entry and records the
// outcome. Failures stay inside this method: siblings and the source keep
// going regardless of what happens here.
func (s *Service) processEntry(ctx context.Context, logger *slog.Logger, e entity.Entry, run *runState) {
	ctx, span := tracing.StartSpan(ctx, "item.process",
		attribute.String("source", e.SourceName),
		attribute.String("title", e.Title))
	defer span.End()

	start := time.Now()
	d, outcome, err := s.buildDigest(ctx, logger, e)
	duration := time.Since(start)

	run.report.RecordItem(outcome, duration, err)
	metrics.RecordItemOutcome(string(outcome))
	span.SetAttributes(attribute.String("outcome", string(outcome)))

	if err != nil {
		tracing.RecordError(span, err)
		logger.Warn("item processing failed",
			slog.String("source", e.SourceName),
			slog.String("title", e.Title),
			slog.Any("error", err))
		return
	}
	run.add(d)
}

// buildDigest walks one entry through cache check, content resolution, layer
// generation and cache write. It fails only when there is no content to work
// from at all; every other problem degrades.
func (s *Service) buildDigest(ctx context.Context, logger *slog.Logger, e entity.Entry) (entity.Digest, report.ItemOutcome, error) {
	fingerprint := e.Fingerprint()

	var found entity.Digest
	if s.cache.Get(cache.NamespaceDigests, fingerprint, &found) {
		logger.Debug("digest cache hit",
			slog.String("source", e.SourceName),
			slog.String("title", e.Title))
		return found, report.ItemCached, nil
	}

	content, paragraphs, meta := s.resolveContent(ctx, logger, e)
	if content == "" {
		return entity.Digest{}, report.ItemFailed, fmt.Errorf("%s: %w", e.Title, ErrNoContent)
	}

	d := entity.Digest{
		Fingerprint: fingerprint,
		Title:       e.Title,
		Link:        e.Link,
		SourceName:  e.SourceName,
		PublishedAt: e.PublishedAt,
		ContentMeta: meta,
		Layers:      s.generateLayers(ctx, logger, e, content, paragraphs),
	}

	// Best effort: the digest is returned even when persisting it fails.
	s.cache.Put(cache.NamespaceDigests, fingerprint, d)
	return d, report.ItemSuccess, nil
}

// resolveContent picks the text the summarizer works from: the extracted
// article when the feed body is too thin and extraction succeeds, otherwise
// the feed body itself. Extraction failure is recorded in the returned meta,
// never returned as an error.
func (s *Service) resolveContent(ctx context.Context, logger *slog.Logger, e entity.Entry) (string, []string, entity.ContentMeta) {
	if !s.extractor.ShouldFetch(e.RawBody) {
		metrics.RecordContentFetchSkipped()
		return e.RawBody, nil, entity.ContentMeta{WordCount: text.CountWords(e.RawBody)}
	}

	start := time.Now()
	ex, err := s.extractor.Extract(ctx, e.Link)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		logger.Warn("content extraction failed, falling back to feed body",
			slog.String("source", e.SourceName),
			slog.String("url", e.Link),
			slog.Any("error", err))
		return e.RawBody, nil, entity.ContentMeta{
			WordCount: text.CountWords(e.RawBody),
			Error:     err.Error(),
		}
	}
	metrics.RecordContentFetchSuccess(time.Since(start), len(ex.Text))

	return ex.Text, ex.Paragraphs, entity.ContentMeta{OK: true, WordCount: ex.WordCount}
}

// generateLayers asks the summarizer for the layered summary and degrades to
// truncation when it cannot produce anything. A provider outage therefore
// costs summary quality, not entries.
func (s *Service) generateLayers(ctx context.Context, logger *slog.Logger, e entity.Entry, content string, paragraphs []string) entity.DigestLayers {
	layers, err := s.summarizer.Summarize(ctx, SummarizeInput{
		Title:      e.Title,
		SourceName: e.SourceName,
		Content:    content,
		Paragraphs: paragraphs,
	})
	if err == nil {
		return layers
	}

	logger.Warn("summary generation failed, degrading to truncated layers",
		slog.String("source", e.SourceName),
		slog.String("title", e.Title),
		slog.Any("error", err))

	overall := text.TruncateRunes(content, degradedOverallRunes)
	return entity.DigestLayers{
		Overall: overall,
		OneLine: text.TruncateRunes(overall, degradedOneLineRunes),
	}
}
