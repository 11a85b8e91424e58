package digest

import (
	"context"
	"errors"
)

// ContentExtractor fetches the full article behind a feed entry and pulls
// clean text from it, so summarization works from the real article instead
// of a feed-provided teaser.
//
// Implementations fetch URLs taken from untrusted feed content. They must
// guard against SSRF, cap response sizes, enforce timeouts, and validate
// every redirect target.
type ContentExtractor interface {
	// Extract fetches the given URL and returns the extracted article.
	//
	// Errors:
	//   - ErrInvalidURL: URL format is invalid or uses an unsupported scheme
	//   - ErrPrivateIP: URL resolves to a private IP address (SSRF prevention)
	//   - ErrTooManyRedirects: redirect chain exceeds the configured maximum
	//   - ErrBodyTooLarge: response body exceeds the size limit
	//   - ErrTimeout: request timed out
	//   - ErrExtractionFailed: the page yielded no readable article
	//   - gobreaker.ErrOpenState: circuit breaker is open (too many failures)
	//
	// Callers handle any of these by degrading to the feed-provided body.
	Extract(ctx context.Context, url string) (*Extraction, error)

	// ShouldFetch reports whether the feed-provided body is too thin to
	// summarize on its own and the full article should be fetched instead.
	ShouldFetch(feedBody string) bool
}

// Extraction is the readable article pulled from an entry's link.
type Extraction struct {
	Text       string   // plain article text, markup stripped
	Paragraphs []string // paragraph texts in document order
	WordCount  int
}

// Sentinel errors for content extraction. They let the pipeline distinguish
// failure modes when deciding how to degrade and what to record in
// ContentMeta.
var (
	// ErrInvalidURL indicates the URL format is invalid or uses an unsupported
	// scheme. Only http:// and https:// are accepted.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP marks a URL whose host resolved to a non-public address.
	// Blocked: loopback, RFC 1918 ranges, link-local.
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded the configured
	// maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the configured
	// size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrExtractionFailed indicates the page was fetched but no readable
	// article could be extracted from it.
	ErrExtractionFailed = errors.New("content extraction failed")
)
