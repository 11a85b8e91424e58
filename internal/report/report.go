// Package report accumulates the outcome of a pipeline run.
//
// A RunReport is shared by every goroutine in the run: feed workers record
// feed-level outcomes, item workers record item-level outcomes, and the run
// driver finalizes the report exactly once when the fan-out settles. The
// finalized Summary is what gets logged, printed, and handed to notifiers.
package report

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ItemOutcome classifies how the pipeline settled a single feed item.
type ItemOutcome string

const (
	// ItemSuccess means a digest was generated for the item.
	ItemSuccess ItemOutcome = "success"

	// ItemFailed means the item produced no digest at all.
	ItemFailed ItemOutcome = "failed"

	// ItemSkipped means the item was never processed (duplicate, over the
	// per-source cap, or the run was cancelled first).
	ItemSkipped ItemOutcome = "skipped"

	// ItemCached means a previously generated digest was reused.
	ItemCached ItemOutcome = "cached"
)

// FeedSummary aggregates feed-level outcomes.
type FeedSummary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// ItemSummary aggregates item-level outcomes.
type ItemSummary struct {
	Total      int      `json:"total"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Cached     int      `json:"cached"`
	Errors     []string `json:"errors,omitempty"`
}

// Performance holds run timing figures. Durations encode as nanoseconds in
// JSON, as time.Duration always does.
type Performance struct {
	TotalDuration             time.Duration `json:"total_duration"`
	AverageItemProcessingTime time.Duration `json:"average_item_processing_time"`
}

// Summary is the immutable result of a finalized run.
type Summary struct {
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Feeds       FeedSummary `json:"feeds"`
	Items       ItemSummary `json:"items"`
	Performance Performance `json:"performance"`
}

// RunReport collects outcomes from concurrent pipeline workers.
// All methods are safe for concurrent use.
type RunReport struct {
	mu sync.Mutex

	logger    *slog.Logger
	startedAt time.Time
	finalized bool
	summary   Summary

	feeds      FeedSummary
	items      ItemSummary
	processing time.Duration

	now func() time.Time
}

// NewRunReport starts a report clocked from now.
func NewRunReport(logger *slog.Logger) *RunReport {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RunReport{
		logger: logger,
		now:    time.Now,
	}
	r.startedAt = r.now()
	return r
}

// RecordFeed records the outcome of one feed fetch. A nil err counts the
// feed as successful.
func (r *RunReport) RecordFeed(sourceName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		r.logger.Warn("run report already finalized, dropping feed record",
			slog.String("source", sourceName))
		return
	}

	r.feeds.Total++
	if err == nil {
		r.feeds.Successful++
		return
	}
	r.feeds.Failed++
	r.feeds.Errors = append(r.feeds.Errors, fmt.Sprintf("%s: %v", sourceName, err))
}

// RecordItem records the outcome of one feed item. The duration matters only
// for processed outcomes (success, failed) and feeds the average processing
// time. err is attached to the summary's error list when non-nil.
func (r *RunReport) RecordItem(outcome ItemOutcome, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		r.logger.Warn("run report already finalized, dropping item record",
			slog.String("outcome", string(outcome)))
		return
	}

	r.items.Total++
	switch outcome {
	case ItemSuccess:
		r.items.Successful++
		r.items.Processed++
		r.processing += duration
	case ItemFailed:
		r.items.Failed++
		r.items.Processed++
		r.processing += duration
	case ItemSkipped:
		r.items.Skipped++
	case ItemCached:
		r.items.Cached++
	default:
		r.logger.Warn("unknown item outcome", slog.String("outcome", string(outcome)))
		r.items.Total--
		return
	}

	if err != nil {
		r.items.Errors = append(r.items.Errors, err.Error())
	}
}

// Finalize freezes the report and returns its summary. The first call wins;
// later calls log a warning and return the same summary.
func (r *RunReport) Finalize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		r.logger.Warn("run report finalized more than once")
		return r.summary
	}

	finished := r.now()
	perf := Performance{
		TotalDuration: finished.Sub(r.startedAt),
	}
	if r.items.Processed > 0 {
		perf.AverageItemProcessingTime = r.processing / time.Duration(r.items.Processed)
	}

	r.summary = Summary{
		StartedAt:   r.startedAt,
		FinishedAt:  finished,
		Feeds:       r.feeds,
		Items:       r.items,
		Performance: perf,
	}
	r.finalized = true
	return r.summary
}

// LogSummary writes the run outcome at info level in the same shape the
// worker logs its crawl completions.
func (s Summary) LogSummary(logger *slog.Logger) {
	logger.Info("pipeline run completed",
		slog.Int("feeds_total", s.Feeds.Total),
		slog.Int("feeds_failed", s.Feeds.Failed),
		slog.Int("items_total", s.Items.Total),
		slog.Int("items_successful", s.Items.Successful),
		slog.Int("items_failed", s.Items.Failed),
		slog.Int("items_skipped", s.Items.Skipped),
		slog.Int("items_cached", s.Items.Cached),
		slog.Duration("duration", s.Performance.TotalDuration),
	)
}

// Text renders a human-readable run summary for CLI output and notifications.
func (s Summary) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run finished in %s\n", s.Performance.TotalDuration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Feeds: %d total, %d successful, %d failed\n",
		s.Feeds.Total, s.Feeds.Successful, s.Feeds.Failed)
	fmt.Fprintf(&b, "Items: %d total, %d successful, %d failed, %d skipped, %d cached\n",
		s.Items.Total, s.Items.Successful, s.Items.Failed, s.Items.Skipped, s.Items.Cached)
	if s.Items.Processed > 0 {
		fmt.Fprintf(&b, "Average item processing time: %s\n",
			s.Performance.AverageItemProcessingTime.Round(time.Millisecond))
	}

	if len(s.Feeds.Errors) > 0 {
		b.WriteString("Feed errors:\n")
		for _, e := range s.Feeds.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	if len(s.Items.Errors) > 0 {
		b.WriteString("Item errors:\n")
		for _, e := range s.Items.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	return b.String()
}

// Failed reports whether the run had any feed or item failures.
func (s Summary) Failed() bool {
	return s.Feeds.Failed > 0 || s.Items.Failed > 0
}
