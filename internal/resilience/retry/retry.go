// Package retry reruns failed operations with exponential backoff and
// jitter. Policies are tuned per collaborator: feed fetches retry harder
// than paid summarizer calls.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Policy holds the configuration for one retried operation.
type Policy struct {
	// MaxAttempts is the number of retries after the initial attempt, so an
	// operation executes at most MaxAttempts+1 times.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the backoff before jitter.
	MaxDelay time.Duration

	// IsRetryable classifies errors; nil uses the package default.
	IsRetryable func(error) bool

	// OnRetry is invoked before each backoff wait with the failing error,
	// the 1-indexed retry number and the jittered delay. Purely for
	// observability: it never affects control flow and may be nil.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy returns a general-purpose retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// FeedFetchPolicy returns the policy for feed endpoint fetching. Feeds are
// cheap to re-request and a missed source hurts the whole run, so this one
// retries the hardest.
func FeedFetchPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ContentFetchPolicy returns the policy for article content fetching. Few
// retries: a stubborn article page degrades to the feed body anyway.
func ContentFetchPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// SummarizerPolicy returns the policy for summarization API calls. Each
// attempt costs money, so the delays are longer and the count stays modest.
func SummarizerPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Do executes op with retries per the policy. It returns nil on the first
// success, the error unchanged when it is classified non-retryable, and a
// wrapped last error once attempts are exhausted. The context is consulted
// only during backoff waits; op itself is responsible for its own timeouts.
func Do(ctx context.Context, p Policy, op func() error) error {
	classify := p.IsRetryable
	if classify == nil {
		classify = IsRetryable
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			if attempt > 0 {
				slog.Info("operation recovered after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !classify(lastErr) {
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		// attempt+1 is the 1-indexed retry about to run.
		delay := backoffDelay(p.BaseDelay, p.MaxDelay, attempt+1)
		if p.OnRetry != nil {
			p.OnRetry(lastErr, attempt+1, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", p.MaxAttempts+1, lastErr)
}

// LogRetries returns an OnRetry hook that logs each retry in the standard
// warning shape. operation names the retried call for log correlation.
func LogRetries(logger *slog.Logger, operation string) func(error, int, time.Duration) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, attempt int, delay time.Duration) {
		logger.Warn("operation failed, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}
}

// backoffDelay computes the wait before the given 1-indexed retry:
// min(base*2^retry, max), jittered by ±25% uniformly, floored at zero.
// The randomization avoids thundering-herd retries when many items fail
// concurrently against the same upstream.
func backoffDelay(base, max time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}

	d := float64(base) * math.Pow(2, float64(retry))
	if max > 0 && d > float64(max) {
		d = float64(max)
	}

	// #nosec G404 -- math/rand is acceptable for backoff jitter;
	// cryptographic randomness is not required here.
	factor := 0.75 + rand.Float64()*0.5
	jittered := time.Duration(d * factor)
	if jittered < 0 {
		jittered = 0
	}
	return jittered
}
