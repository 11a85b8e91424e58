// Package notifier delivers run-summary notifications to webhook services.
// It defines the Notifier interface which allows different notification
// mechanisms (Discord, Slack, email, etc.) to be used interchangeably
// through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when notifications are disabled.
package notifier

import (
	"context"
	"log/slog"

	"digest-feed/internal/report"
)

// Notifier sends a notification about a finished pipeline run.
// Implementations handle rate limiting, retries, and error logging
// internally.
type Notifier interface {
	// NotifyRun delivers the run summary. It returns a non-nil error only
	// after all retry attempts are exhausted.
	NotifyRun(ctx context.Context, summary report.Summary) error
}

// Fanout delivers one summary to every configured target. A target's
// failure is logged and never stops delivery to the remaining targets; the
// run itself is unaffected either way.
type Fanout struct {
	targets []Notifier
	logger  *slog.Logger
}

func NewFanout(logger *slog.Logger, targets ...Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{targets: targets, logger: logger}
}

func (f *Fanout) NotifyRun(ctx context.Context, summary report.Summary) error {
	for _, t := range f.targets {
		if err := t.NotifyRun(ctx, summary); err != nil {
			f.logger.Warn("Run notification failed",
				slog.Any("error", err))
		}
	}
	return nil
}
