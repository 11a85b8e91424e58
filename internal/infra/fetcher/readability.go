package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"digest-feed/internal/resilience/circuitbreaker"
	"digest-feed/internal/resilience/retry"
	"digest-feed/internal/usecase/digest"
	"digest-feed/internal/utils/text"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"
)

// userAgent identifies the pipeline to article hosts.
const userAgent = "DigestFeedBot/1.0"

// ReadabilityFetcher implements the ContentExtractor interface using the
// Mozilla Readability algorithm. It fetches HTML from an entry's link and
// extracts clean article text plus its paragraph structure.
//
// Every URL, including redirect targets, goes through SSRF validation;
// response bodies are size-capped and requests time out against slow
// servers. A circuit breaker and retry policy sit around the whole fetch.
// Safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryPolicy    retry.Policy
	config         Config
	logger         *slog.Logger
}

// NewReadabilityFetcher creates a new ReadabilityFetcher with the given
// configuration. The HTTP client enforces TLS 1.2+, validates every redirect
// target, and shares its connection pool across extractions.
func NewReadabilityFetcher(cfg Config, logger *slog.Logger) *ReadabilityFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	policy := retry.ContentFetchPolicy()
	policy.OnRetry = retry.LogRetries(logger, "content_fetch")

	f := &ReadabilityFetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.ContentFetchConfig()),
		retryPolicy:    policy,
		config:         cfg,
		logger:         logger,
	}

	f.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", digest.ErrTooManyRedirects, len(via))
			}

			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}

			return nil
		},
	}

	return f
}

// ShouldFetch reports whether the feed-provided body is below the configured
// threshold and the full article should be fetched. Always false when
// extraction is disabled.
func (f *ReadabilityFetcher) ShouldFetch(feedBody string) bool {
	if !f.config.Enabled {
		return false
	}
	return text.CountRunes(feedBody) < f.config.Threshold
}

// Extract fetches the URL and extracts the readable article from it.
// The URL is validated before any request is made; transient transport and
// server errors are retried, permanent ones (bad URL, SSRF rejection, 4xx,
// unextractable page) fail immediately.
func (f *ReadabilityFetcher) Extract(ctx context.Context, urlStr string) (*digest.Extraction, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	var extraction *digest.Extraction

	retryErr := retry.Do(ctx, f.retryPolicy, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, urlStr)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				f.logger.Warn("content fetch circuit breaker open, rejecting call",
					slog.String("service", "content-fetch"),
					slog.String("url", urlStr),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}

		extraction = cbResult.(*digest.Extraction)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return extraction, nil
}

// doFetch performs one HTTP request and extraction attempt without retry or
// circuit breaker.
func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (*digest.Extraction, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", digest.ErrInvalidURL, err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: request exceeded %v", digest.ErrTimeout, f.config.Timeout)
		}
		// Surface redirect validation errors without the url.Error wrapper
		// so callers can match the sentinel.
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	limitedReader := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return nil, fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			digest.ErrBodyTooLarge, len(htmlBytes), f.config.MaxBodySize)
	}

	// Extraction runs against the final URL so relative links resolve even
	// after redirects.
	finalURL, err := url.Parse(urlStr)
	if err != nil {
		finalURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), finalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", digest.ErrExtractionFailed, err)
	}

	content := strings.TrimSpace(article.TextContent)
	paragraphs := splitParagraphs(article.Content)
	if content == "" {
		content = strings.Join(paragraphs, "\n\n")
	}
	if content == "" {
		return nil, fmt.Errorf("%w: no readable content found", digest.ErrExtractionFailed)
	}

	return &digest.Extraction{
		Text:       content,
		Paragraphs: paragraphs,
		WordCount:  text.CountWords(content),
	}, nil
}

// splitParagraphs pulls the paragraph texts out of the extracted article
// HTML, in document order. A parse failure yields no paragraphs; the
// summarizer then works from the undivided text.
func splitParagraphs(html string) []string {
	if html == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if p := strings.TrimSpace(s.Text()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	})

	return paragraphs
}
