package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength caps endpoint URLs; anything longer is rejected before it
// reaches a parser or a log line.
const maxURLLength = 2048

// ValidateURL validates the format of a source endpoint URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a host.
// Network-level checks (private address blocking for fetched article links) are
// the content fetcher's responsibility; validating configured endpoints must not
// perform DNS lookups.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "endpoint",
			Message: fmt.Sprintf("endpoint must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must have a valid host"}
	}

	return nil
}
