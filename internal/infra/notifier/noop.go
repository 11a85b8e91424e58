package notifier

import (
	"context"

	"digest-feed/internal/report"
)

// NoOpNotifier discards run notifications. Used when no webhook is
// configured so callers never have to nil-check their notifier.
type NoOpNotifier struct{}

func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) NotifyRun(_ context.Context, _ report.Summary) error {
	return nil
}
