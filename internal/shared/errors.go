package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Runtime errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// External call failure classes. Every outbound API error wraps exactly one of
	// these so the retry policy can decide whether and how to retry.
	ErrTransient   = fmt.Errorf("transient failure")
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrClient      = fmt.Errorf("client error")

	// Pipeline errors
	ErrExtractionFailed     = fmt.Errorf("artist extraction failed")
	ErrArtistNotFound       = fmt.Errorf("artist not found")
	ErrNoTracks             = fmt.Errorf("no tracks available")
	ErrPlaylistCreateFailed = fmt.Errorf("playlist creation failed")
	ErrAssetNotFound        = fmt.Errorf("asset not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ClassifyStatus maps an HTTP response status to a failure class sentinel.
//
// 429 is rate limiting, all other 4xx are caller bugs and never retried, 5xx are transient.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 400 && status < 500:
		return ErrClient
	default:
		return ErrTransient
	}
}

// IsRetryable reports whether an external call failure warrants another attempt.
//
// Timeouts and connection failures surface as [context.DeadlineExceeded] or plain
// transport errors and are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClient) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Unclassified transport errors (connection refused, reset, DNS) land here.
	return !errors.Is(err, context.Canceled)
}
