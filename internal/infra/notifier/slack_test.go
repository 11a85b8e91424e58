package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSlackNotifier(url string) *SlackNotifier {
	n := NewSlackNotifier(SlackConfig{
		Enabled:    true,
		WebhookURL: url,
		Timeout:    5 * time.Second,
	})
	n.retryBaseDelay = 5 * time.Millisecond
	return n
}

func TestNewSlackNotifier(t *testing.T) {
	n := NewSlackNotifier(SlackConfig{
		Enabled:    true,
		WebhookURL: "https://hooks.slack.com/services/T00/B00/XXX",
		Timeout:    10 * time.Second,
	})

	if n.httpClient.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", n.httpClient.Timeout)
	}
	if n.rateLimiter == nil {
		t.Error("expected rate limiter to be initialized")
	}
	if n.retryBaseDelay != 5*time.Second {
		t.Errorf("expected default retry base delay 5s, got %v", n.retryBaseDelay)
	}
}

func TestSlackNotifier_buildBlockKitPayload(t *testing.T) {
	notifier := newTestSlackNotifier("https://hooks.slack.com/services/T00/B00/XXX")

	t.Run("should build section and context blocks", func(t *testing.T) {
		payload := notifier.buildBlockKitPayload(sampleSummary())

		want := "Digest run completed: 3/4 items successful"
		if payload.Text != want {
			t.Errorf("expected fallback %q, got %q", want, payload.Text)
		}

		if len(payload.Blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(payload.Blocks))
		}

		section := payload.Blocks[0]
		if section.Type != "section" {
			t.Errorf("expected section block, got %q", section.Type)
		}
		if section.Text == nil || section.Text.Type != "mrkdwn" {
			t.Fatalf("expected mrkdwn section text, got %+v", section.Text)
		}
		if !strings.HasPrefix(section.Text.Text, "*Digest run completed*") {
			t.Errorf("section should open with the headline, got %q", section.Text.Text)
		}
		if !strings.Contains(section.Text.Text, "Feeds: 2 total, 2 successful, 0 failed") {
			t.Errorf("section should carry feed counts, got %q", section.Text.Text)
		}
		if !strings.Contains(section.Text.Text, "Items: 4 total") {
			t.Errorf("section should carry item counts, got %q", section.Text.Text)
		}

		contextBlock := payload.Blocks[1]
		if contextBlock.Type != "context" {
			t.Errorf("expected context block, got %q", contextBlock.Type)
		}
		if len(contextBlock.Elements) != 1 {
			t.Fatalf("expected 1 context element, got %d", len(contextBlock.Elements))
		}
		wantContext := "digest-feed • 2026-01-16T06:00:42Z"
		if contextBlock.Elements[0].Text != wantContext {
			t.Errorf("expected context %q, got %q", wantContext, contextBlock.Elements[0].Text)
		}
	})

	t.Run("should flag failures in the headline", func(t *testing.T) {
		payload := notifier.buildBlockKitPayload(failedSummary())

		if !strings.Contains(payload.Text, "with failures") {
			t.Errorf("fallback should mention failures, got %q", payload.Text)
		}
		if !strings.Contains(payload.Text, "2/4") {
			t.Errorf("fallback should carry counts, got %q", payload.Text)
		}
		section := payload.Blocks[0].Text.Text
		if !strings.HasPrefix(section, "*Digest run completed with failures*") {
			t.Errorf("section should open with the failure headline, got %q", section)
		}
		if !strings.Contains(section, "connection refused") {
			t.Errorf("section should list feed errors, got %q", section)
		}
	})

	t.Run("should truncate long section text", func(t *testing.T) {
		summary := failedSummary()
		for i := 0; i < 100; i++ {
			summary.Items.Errors = append(summary.Items.Errors,
				fmt.Sprintf("item-%03d: %s", i, strings.Repeat("x", 80)))
		}

		payload := notifier.buildBlockKitPayload(summary)

		section := payload.Blocks[0].Text.Text
		if len(section) != maxSectionTextLength {
			t.Errorf("expected section length %d, got %d", maxSectionTextLength, len(section))
		}
		if !strings.HasSuffix(section, slackTruncationSuffix) {
			t.Errorf("expected truncation suffix, got tail %q", section[len(section)-10:])
		}
	})

	t.Run("should keep the fallback within limits", func(t *testing.T) {
		payload := notifier.buildBlockKitPayload(failedSummary())
		if len(payload.Text) > maxFallbackLength {
			t.Errorf("fallback too long: %d bytes", len(payload.Text))
		}
	})
}

func TestSlackNotifier_NotifyRun(t *testing.T) {
	t.Run("should deliver the payload to the webhook", func(t *testing.T) {
		var mu sync.Mutex
		var captured []byte
		var contentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			captured = body
			contentType = r.Header.Get("Content-Type")
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := newTestSlackNotifier(server.URL)
		if err := notifier.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if contentType != "application/json" {
			t.Errorf("expected JSON content type, got %q", contentType)
		}

		var payload slackPayload
		if err := json.Unmarshal(captured, &payload); err != nil {
			t.Fatalf("webhook body is not valid JSON: %v", err)
		}
		if len(payload.Blocks) != 2 {
			t.Errorf("expected 2 blocks on the wire, got %d", len(payload.Blocks))
		}
		if payload.Text == "" {
			t.Error("expected non-empty fallback text")
		}
	})

	t.Run("should retry server errors", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requests, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := newTestSlackNotifier(server.URL)
		if err := notifier.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("expected success after retry, got %v", err)
		}
		if got := atomic.LoadInt32(&requests); got != 2 {
			t.Errorf("expected 2 requests, got %d", got)
		}
	})

	t.Run("should honor retry_after on 429", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requests, 1) == 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"retry_after": 0.01}`))
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := newTestSlackNotifier(server.URL)
		start := time.Now()
		if err := notifier.NotifyRun(context.Background(), sampleSummary()); err != nil {
			t.Fatalf("expected success after backoff, got %v", err)
		}
		if got := atomic.LoadInt32(&requests); got != 2 {
			t.Errorf("expected 2 requests, got %d", got)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("backoff took too long: %v", elapsed)
		}
	})

	t.Run("should fail fast on client errors", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid_payload"))
		}))
		defer server.Close()

		notifier := newTestSlackNotifier(server.URL)
		err := notifier.NotifyRun(context.Background(), sampleSummary())
		if err == nil {
			t.Fatal("expected error")
		}
		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("expected ClientError, got %v", err)
		}
		if got := atomic.LoadInt32(&requests); got != 1 {
			t.Errorf("client errors must not be retried, got %d requests", got)
		}
	})

	t.Run("should give up after exhausted retries", func(t *testing.T) {
		var requests int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := newTestSlackNotifier(server.URL)
		err := notifier.NotifyRun(context.Background(), sampleSummary())
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "Slack notification failed after 2 attempts") {
			t.Errorf("unexpected error: %v", err)
		}
		if got := atomic.LoadInt32(&requests); got != 2 {
			t.Errorf("expected 2 requests, got %d", got)
		}
	})
}
