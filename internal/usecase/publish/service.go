package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"digest-feed/internal/domain/entity"
	"digest-feed/internal/observability/metrics"
	"digest-feed/internal/repository"
)

// FeedWriter renders the merged published state as a feed document.
// A nil FeedWriter disables rendering.
type FeedWriter interface {
	WriteFeed(ctx context.Context, entries []entity.PublishedEntry) error
}

// Service publishes a run's digests: assemble entries per the configured
// mode, merge with the previous state under the retention horizon, replace
// the store, and render the feed.
type Service struct {
	store       repository.PublishedRepository
	feed        FeedWriter
	mode        string
	horizonDays int
	logger      *slog.Logger

	now func() time.Time
}

func NewService(store repository.PublishedRepository, feed FeedWriter, mode string, horizonDays int, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		feed:        feed,
		mode:        mode,
		horizonDays: horizonDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish merges the digests into the published store and returns the
// merged entry count. A run that produced zero digests skips publishing
// entirely so a fully failed run never truncates the published history.
// Store errors are returned; a feed-rendering failure is only logged,
// because the feed is derived state and is rebuilt from the store on the
// next run.
func (s *Service) Publish(ctx context.Context, digests []entity.Digest) (int, error) {
	if len(digests) == 0 {
		s.logger.InfoContext(ctx, "No digests produced, skipping publish")
		return 0, nil
	}

	now := s.now()
	current := BuildEntries(digests, s.mode, now)

	previous, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load published entries: %w", err)
	}

	merged := Merge(current, previous, s.horizonDays, now)

	if err := s.store.Replace(ctx, merged); err != nil {
		return 0, fmt.Errorf("replace published entries: %w", err)
	}
	metrics.UpdatePublishedEntriesTotal(len(merged))

	if s.feed != nil {
		if err := s.feed.WriteFeed(ctx, merged); err != nil {
			s.logger.WarnContext(ctx, "Feed rendering failed",
				slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "Published",
		slog.String("mode", s.mode),
		slog.Int("current", len(current)),
		slog.Int("retained", len(merged)-len(current)),
		slog.Int("total", len(merged)))

	return len(merged), nil
}
