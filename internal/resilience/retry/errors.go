package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Sentinel classifications for upstream failures. Service adapters wrap their
// provider-specific errors with these so the default classifier recognizes
// them without knowing any SDK's error types.
var (
	// ErrRateLimited marks an upstream rate-limit rejection.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError marks an upstream server-side failure.
	ErrServerError = errors.New("server error")
)

// HTTPError carries a response status code so the classifier can tell
// permanent rejections from transient upstream trouble.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err looks transient enough that another
// attempt could succeed.
//
// Retryable: network timeouts, connection reset/refused, host or network
// unreachable, DNS failures, HTTP 408/429/5xx, and the ErrRateLimited /
// ErrServerError sentinels. Never retryable: context cancellation and TLS
// certificate verification failures, which will not resolve by waiting.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Certificate problems are permanent; check before the generic
	// net.Error path since they arrive wrapped in url.Error.
	var certVerifyErr *tls.CertificateVerificationError
	if errors.As(err, &certVerifyErr) {
		return false
	}
	var unknownAuthorityErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthorityErr) {
		return false
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return false
	}
	var certInvalidErr x509.CertificateInvalidError
	if errors.As(err, &certInvalidErr) {
		return false
	}

	// Adapters classify some failures themselves before wrapping.
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		s := httpErr.StatusCode
		return (s >= 500 && s < 600) ||
			s == http.StatusTooManyRequests ||
			s == http.StatusRequestTimeout
	}

	return false
}
