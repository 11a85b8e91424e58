package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"digest-feed/internal/cache"
	"digest-feed/internal/domain/entity"
	"digest-feed/internal/observability/logging"
	"digest-feed/internal/observability/metrics"
	"digest-feed/internal/observability/tracing"
	"digest-feed/internal/report"
	"digest-feed/internal/resilience/retry"
	"digest-feed/internal/scheduler"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// FeedFetcher is an interface for fetching one source's feed and parsing it
// into entries.
type FeedFetcher interface {
	Fetch(ctx context.Context, src entity.Source) ([]entity.Entry, error)
}

// SourceLoader loads the configured source list at run start. Loading per run
// rather than per process lets a long-running worker pick up source edits
// between runs.
type SourceLoader func() ([]entity.Source, error)

// Options tunes a run's fan-out and per-source workload.
type Options struct {
	// SourceConcurrency bounds how many sources are processed at once.
	SourceConcurrency int

	// ItemConcurrency bounds how many entries of one source are processed
	// at once.
	ItemConcurrency int

	// ItemPause is slept after each entry settles, spacing out calls against
	// rate-limited summarization APIs. Zero disables it.
	ItemPause time.Duration

	// MaxEntriesPerSource caps how many entries of one source are processed
	// per run, newest first. Zero means no cap.
	MaxEntriesPerSource int
}

// Service orchestrates digest runs: it loads sources, fans out across feeds
// and entries under bounded concurrency, drives each entry through the digest
// state machine, and accumulates the run report.
type Service struct {
	fetcher     FeedFetcher
	extractor   ContentExtractor
	summarizer  Summarizer
	cache       *cache.Store
	loadSources SourceLoader
	opts        Options
	logger      *slog.Logger
}

// NewService creates a digest Service with the provided collaborators.
func NewService(
	fetcher FeedFetcher,
	extractor ContentExtractor,
	summarizer Summarizer,
	store *cache.Store,
	loadSources SourceLoader,
	opts Options,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:     fetcher,
		extractor:   extractor,
		summarizer:  summarizer,
		cache:       store,
		loadSources: loadSources,
		opts:        opts,
		logger:      logger,
	}
}

// runState is the mutable state shared by one run's tasks. The report carries
// its own lock; mu guards the fingerprint claims and the collected digests.
type runState struct {
	report *report.RunReport

	mu      sync.Mutex
	claimed map[string]struct{}
	digests []entity.Digest
}

func newRunState(logger *slog.Logger) *runState {
	return &runState{
		report:  report.NewRunReport(logger),
		claimed: make(map[string]struct{}),
	}
}

// claim reserves a fingerprint for this run. The first caller wins; later
// callers get false and skip the entry, so fingerprint-keyed work is never
// duplicated within a run, even across sources republishing the same item.
func (r *runState) claim(fingerprint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.claimed[fingerprint]; dup {
		return false
	}
	r.claimed[fingerprint] = struct{}{}
	return true
}

func (r *runState) add(d entity.Digest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, d)
}

func (r *runState) collected() []entity.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.digests
}

// Run executes one full digest run and returns the produced digests with the
// finalized run report.
//
// The only run-fatal condition is an unusable source list, surfaced before
// any processing. Everything past that point is isolation and degradation:
// Run returns a summary even when every source failed. Digests come back
// ordered by publish time descending with the fingerprint as tiebreak, so
// concurrent completion order never shows in the result.
func (s *Service) Run(ctx context.Context) ([]entity.Digest, report.Summary, error) {
	runID := uuid.New().String()
	logger := logging.WithRunID(s.logger, runID)

	ctx, span := tracing.StartSpan(ctx, "pipeline.run", attribute.String("run_id", runID))
	defer span.End()

	start := time.Now()

	sources, err := s.loadSources()
	if err != nil {
		err = fmt.Errorf("load sources: %w", err)
		tracing.RecordError(span, err)
		metrics.RecordRun("failed", time.Since(start))
		return nil, report.Summary{}, err
	}
	if len(sources) == 0 {
		tracing.RecordError(span, ErrNoSources)
		metrics.RecordRun("failed", time.Since(start))
		return nil, report.Summary{}, ErrNoSources
	}

	logger.Info("digest run started",
		slog.Int("sources", len(sources)),
		slog.Int("source_concurrency", s.opts.SourceConcurrency),
		slog.Int("item_concurrency", s.opts.ItemConcurrency))

	run := newRunState(logger)
	outer := scheduler.Bounded{Limit: s.opts.SourceConcurrency}
	outer.Each(ctx, len(sources), func(ctx context.Context, i int) {
		s.processSource(ctx, logger, sources[i], run)
	})

	summary := run.report.Finalize()
	summary.LogSummary(logger)
	metrics.RecordRun(runStatus(summary), summary.Performance.TotalDuration)

	digests := run.collected()
	sortDigests(digests)

	span.SetAttributes(
		attribute.Int("digests", len(digests)),
		attribute.Int("feeds_failed", summary.Feeds.Failed),
		attribute.Int("items_failed", summary.Items.Failed))

	return digests, summary, nil
}

// processSource fetches one source's feed and fans out across its entries.
// A fetch or parse failure is recorded and ends only this source; siblings
// already run independently under the outer scheduler.
func (s *Service) processSource(ctx context.Context, logger *slog.Logger, src entity.Source, run *runState) {
	ctx, span := tracing.StartSpan(ctx, "feed.fetch",
		attribute.String("source", src.Name),
		attribute.String("endpoint", src.Endpoint))
	defer span.End()

	start := time.Now()
	entries, fromCache, err := s.loadEntries(ctx, src)
	metrics.RecordFeedFetch(src.Name, time.Since(start), err)
	run.report.RecordFeed(src.Name, err)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordFeedFetchError(src.Name, fetchErrorType(err))
		logger.Warn("feed fetch failed",
			slog.String("source", src.Name),
			slog.String("endpoint", src.Endpoint),
			slog.Any("error", err))
		return
	}

	if len(entries) == 0 {
		logger.Info("feed is empty", slog.String("source", src.Name))
		return
	}

	work := s.selectEntries(entries, run)
	span.SetAttributes(
		attribute.Bool("cache_hit", fromCache),
		attribute.Int("entries", len(entries)),
		attribute.Int("selected", len(work)))

	inner := scheduler.Bounded{Limit: s.opts.ItemConcurrency, Pause: s.opts.ItemPause}
	inner.Each(ctx, len(work), func(ctx context.Context, i int) {
		s.processEntry(ctx, logger, work[i], run)
	})

	logger.Info("source processed",
		slog.String("source", src.Name),
		slog.Bool("from_cache", fromCache),
		slog.Int("entries", len(entries)),
		slog.Int("selected", len(work)),
		slog.Duration("duration", time.Since(start)))
}

// loadEntries returns the source's entries, reusing the raw-feed cache when a
// fresh record exists. A fetched result is cached for later runs; losing that
// write only costs the reuse.
func (s *Service) loadEntries(ctx context.Context, src entity.Source) ([]entity.Entry, bool, error) {
	var entries []entity.Entry
	if s.cache.Get(cache.NamespaceFeeds, src.CacheKey(), &entries) {
		return entries, true, nil
	}

	fetched, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFeedFetchFailed, err)
	}
	s.cache.Put(cache.NamespaceFeeds, src.CacheKey(), fetched)
	return fetched, false, nil
}

// selectEntries orders a source's entries newest first, applies the
// per-source cap, and claims each survivor's fingerprint. Overflow and
// duplicates are recorded as skipped without further work.
func (s *Service) selectEntries(entries []entity.Entry, run *runState) []entity.Entry {
	ordered := make([]entity.Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
	})

	skipped := 0
	if max := s.opts.MaxEntriesPerSource; max > 0 && len(ordered) > max {
		skipped = len(ordered) - max
		ordered = ordered[:max]
	}

	work := make([]entity.Entry, 0, len(ordered))
	for _, e := range ordered {
		if !run.claim(e.Fingerprint()) {
			skipped++
			continue
		}
		work = append(work, e)
	}

	for i := 0; i < skipped; i++ {
		run.report.RecordItem(report.ItemSkipped, 0, nil)
		metrics.RecordItemOutcome(string(report.ItemSkipped))
	}
	return work
}

// sortDigests orders digests by publish time descending, fingerprint as the
// deterministic tiebreak.
func sortDigests(digests []entity.Digest) {
	sort.SliceStable(digests, func(i, j int) bool {
		if !digests[i].PublishedAt.Equal(digests[j].PublishedAt) {
			return digests[i].PublishedAt.After(digests[j].PublishedAt)
		}
		return digests[i].Fingerprint < digests[j].Fingerprint
	})
}

// runStatus maps a finalized summary onto the run metric's status label.
func runStatus(summary report.Summary) string {
	if summary.Failed() {
		return "partial"
	}
	return "success"
}

// fetchErrorType buckets a fetch failure for the per-source error metric.
func fetchErrorType(err error) string {
	var httpErr *retry.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return "http"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "fetch"
	}
}
