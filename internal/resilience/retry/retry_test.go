package retry

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"
)

// fastPolicy keeps test wait times negligible.
func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return ErrServerError
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func() error {
		calls++
		return ErrServerError
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	// MaxAttempts=2 means one initial attempt plus two retries.
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected wrapped ErrServerError, got %v", err)
	}
	if !strings.Contains(err.Error(), "retries exhausted after 3 attempts") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	permanent := errors.New("permanent failure")
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return permanent
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	// Non-retryable errors come back unchanged, not wrapped.
	if err != permanent {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestDo_ZeroMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(0), func() error {
		calls++
		return ErrServerError
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !strings.Contains(err.Error(), "retries exhausted after 1 attempts") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDo_NegativeMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(-5), func() error {
		calls++
		return ErrServerError
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Second,
	}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, p, func() error {
		calls++
		return ErrServerError
	})

	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(err.Error(), "retry aborted") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	p := fastPolicy(3)
	p.OnRetry = func(err error, attempt int, delay time.Duration) {
		if err == nil {
			t.Error("OnRetry received nil error")
		}
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	}

	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
	for i, d := range delays {
		if d < 0 {
			t.Errorf("delay %d is negative: %v", i, d)
		}
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	special := errors.New("special")
	p := fastPolicy(2)
	p.IsRetryable = func(err error) bool {
		return errors.Is(err, special)
	}

	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return special
	})

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, special) {
		t.Errorf("expected wrapped special error, got %v", err)
	}
}

// timeoutNetError simulates a network timeout.
type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "context deadline exceeded",
			err:  context.DeadlineExceeded,
			want: false,
		},
		{
			name: "wrapped context canceled",
			err:  fmt.Errorf("fetch feed: %w", context.Canceled),
			want: false,
		},
		{
			name: "rate limited sentinel",
			err:  ErrRateLimited,
			want: true,
		},
		{
			name: "server error sentinel",
			err:  ErrServerError,
			want: true,
		},
		{
			name: "wrapped rate limited",
			err:  fmt.Errorf("claude api: %w", ErrRateLimited),
			want: true,
		},
		{
			name: "dns error",
			err:  &net.DNSError{Err: "no such host", Name: "feeds.example.com"},
			want: true,
		},
		{
			name: "network timeout",
			err:  timeoutNetError{},
			want: true,
		},
		{
			name: "network timeout inside url.Error",
			err:  &url.Error{Op: "Get", URL: "https://example.com/feed", Err: timeoutNetError{}},
			want: true,
		},
		{
			name: "connection refused",
			err:  syscall.ECONNREFUSED,
			want: true,
		},
		{
			name: "connection reset",
			err:  syscall.ECONNRESET,
			want: true,
		},
		{
			name: "connection timed out",
			err:  syscall.ETIMEDOUT,
			want: true,
		},
		{
			name: "network unreachable",
			err:  syscall.ENETUNREACH,
			want: true,
		},
		{
			name: "http 500",
			err:  &HTTPError{StatusCode: 500, Message: "Internal Server Error"},
			want: true,
		},
		{
			name: "http 503",
			err:  &HTTPError{StatusCode: 503, Message: "Service Unavailable"},
			want: true,
		},
		{
			name: "http 429",
			err:  &HTTPError{StatusCode: 429, Message: "Too Many Requests"},
			want: true,
		},
		{
			name: "http 408",
			err:  &HTTPError{StatusCode: 408, Message: "Request Timeout"},
			want: true,
		},
		{
			name: "http 400",
			err:  &HTTPError{StatusCode: 400, Message: "Bad Request"},
			want: false,
		},
		{
			name: "http 401",
			err:  &HTTPError{StatusCode: 401, Message: "Unauthorized"},
			want: false,
		},
		{
			name: "http 404",
			err:  &HTTPError{StatusCode: 404, Message: "Not Found"},
			want: false,
		},
		{
			name: "wrapped http 502",
			err:  fmt.Errorf("fetch content: %w", &HTTPError{StatusCode: 502, Message: "Bad Gateway"}),
			want: true,
		},
		{
			name: "unknown certificate authority",
			err:  &url.Error{Op: "Get", URL: "https://self-signed.example.com", Err: x509.UnknownAuthorityError{}},
			want: false,
		},
		{
			name: "hostname mismatch",
			err:  &url.Error{Op: "Get", URL: "https://example.com", Err: x509.HostnameError{Host: "example.com"}},
			want: false,
		},
		{
			name: "expired certificate",
			err:  x509.CertificateInvalidError{Reason: x509.Expired},
			want: false,
		},
		{
			name: "generic error",
			err:  errors.New("something went wrong"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	want := "HTTP 503: Service Unavailable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBackoffDelay_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	for retry := 1; retry <= 8; retry++ {
		expected := base * time.Duration(1<<uint(retry))
		if expected > max {
			expected = max
		}
		lower := time.Duration(float64(expected) * 0.75)
		upper := time.Duration(float64(expected) * 1.25)

		// Jitter is random, so sample repeatedly.
		for i := 0; i < 50; i++ {
			d := backoffDelay(base, max, retry)
			if d < lower || d > upper {
				t.Fatalf("retry %d: delay %v outside [%v, %v]", retry, d, lower, upper)
			}
		}
	}
}

func TestBackoffDelay_FirstRetryDoublesBase(t *testing.T) {
	base := 100 * time.Millisecond
	// First retry centers on base*2, not base.
	for i := 0; i < 50; i++ {
		d := backoffDelay(base, time.Minute, 1)
		if d < 150*time.Millisecond || d > 250*time.Millisecond {
			t.Fatalf("first retry delay %v outside [150ms, 250ms]", d)
		}
	}
}

func TestBackoffDelay_ZeroBase(t *testing.T) {
	if d := backoffDelay(0, time.Second, 1); d != 0 {
		t.Errorf("expected 0 for zero base delay, got %v", d)
	}
}

func TestBackoffDelay_NeverNegative(t *testing.T) {
	for retry := 1; retry <= 20; retry++ {
		if d := backoffDelay(time.Nanosecond, 0, retry); d < 0 {
			t.Errorf("retry %d: negative delay %v", retry, d)
		}
	}
}

func TestPolicyConstructors(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		maxAttempts int
		baseDelay   time.Duration
		maxDelay    time.Duration
	}{
		{"default", DefaultPolicy(), 3, 500 * time.Millisecond, 30 * time.Second},
		{"feed fetch", FeedFetchPolicy(), 4, time.Second, 30 * time.Second},
		{"content fetch", ContentFetchPolicy(), 2, time.Second, 10 * time.Second},
		{"summarizer", SummarizerPolicy(), 3, 2 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.policy.MaxAttempts != tt.maxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", tt.policy.MaxAttempts, tt.maxAttempts)
			}
			if tt.policy.BaseDelay != tt.baseDelay {
				t.Errorf("BaseDelay = %v, want %v", tt.policy.BaseDelay, tt.baseDelay)
			}
			if tt.policy.MaxDelay != tt.maxDelay {
				t.Errorf("MaxDelay = %v, want %v", tt.policy.MaxDelay, tt.maxDelay)
			}
		})
	}
}

func TestLogRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	p := fastPolicy(1)
	p.OnRetry = LogRetries(logger, "feed_fetch")

	calls := 0
	_ = Do(context.Background(), p, func() error {
		calls++
		if calls == 1 {
			return ErrServerError
		}
		return nil
	})

	out := buf.String()
	if !strings.Contains(out, "operation failed, retrying") {
		t.Errorf("expected retry log message, got %q", out)
	}
	if !strings.Contains(out, "feed_fetch") {
		t.Errorf("expected operation name in log, got %q", out)
	}
}
