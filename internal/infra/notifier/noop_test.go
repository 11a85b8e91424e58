package notifier

import (
	"context"
	"testing"
)

func TestNoOpNotifier_NotifyRun(t *testing.T) {
	notifier := NewNoOpNotifier()

	if err := notifier.NotifyRun(context.Background(), sampleSummary()); err != nil {
		t.Errorf("no-op notifier must never fail, got %v", err)
	}
	if err := notifier.NotifyRun(context.Background(), failedSummary()); err != nil {
		t.Errorf("no-op notifier must never fail, got %v", err)
	}
}
