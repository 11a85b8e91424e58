package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"digest-feed/internal/report"
)

// sampleSummary is a fully successful run: 2 feeds, 4 items of which 3
// produced digests and 1 was skipped.
func sampleSummary() report.Summary {
	started := time.Date(2026, 1, 16, 6, 0, 0, 0, time.UTC)
	return report.Summary{
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Feeds:      report.FeedSummary{Total: 2, Successful: 2},
		Items: report.ItemSummary{
			Total:      4,
			Processed:  3,
			Successful: 3,
			Skipped:    1,
		},
		Performance: report.Performance{
			TotalDuration:             42 * time.Second,
			AverageItemProcessingTime: 2 * time.Second,
		},
	}
}

// failedSummary is sampleSummary with one feed and one item failure.
func failedSummary() report.Summary {
	s := sampleSummary()
	s.Feeds.Successful = 1
	s.Feeds.Failed = 1
	s.Feeds.Errors = []string{"Go Blog: fetch feed: connection refused"}
	s.Items.Successful = 2
	s.Items.Failed = 1
	s.Items.Errors = []string{"release-notes: no content available"}
	return s
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) NotifyRun(_ context.Context, _ report.Summary) error {
	s.calls++
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanout_NotifyRun(t *testing.T) {
	t.Run("should deliver to every target", func(t *testing.T) {
		first := &stubNotifier{}
		second := &stubNotifier{}
		fanout := NewFanout(discardLogger(), first, second)

		if err := fanout.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.calls != 1 || second.calls != 1 {
			t.Errorf("expected 1 call each, got %d and %d", first.calls, second.calls)
		}
	})

	t.Run("should continue past a failing target", func(t *testing.T) {
		failing := &stubNotifier{err: errors.New("webhook down")}
		healthy := &stubNotifier{}
		fanout := NewFanout(discardLogger(), failing, healthy)

		if err := fanout.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("fanout must never fail the run, got %v", err)
		}
		if healthy.calls != 1 {
			t.Errorf("expected healthy target to be called, got %d calls", healthy.calls)
		}
	})

	t.Run("should handle zero targets", func(t *testing.T) {
		fanout := NewFanout(nil)
		if err := fanout.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
