package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the ingest pipeline. Per-item errors are absorbed and
// recorded; per-page errors are retried then recorded; workflow errors are
// surfaced synchronously to the caller.
var (
	// ErrChallengeDetected marks a bot challenge (403 with challenge
	// markers). Never retried automatically.
	ErrChallengeDetected = errors.New("bot challenge detected")

	// ErrExtractionIncomplete marks a candidate missing both title and URL.
	ErrExtractionIncomplete = errors.New("extraction incomplete")

	// ErrDuplicateItem marks an item already seen for the source.
	ErrDuplicateItem = errors.New("duplicate item")

	// ErrNormalizationFailed marks an item whose title is empty after cleaning.
	ErrNormalizationFailed = errors.New("normalization failed")

	// ErrInvalidTransition marks a workflow action not permitted by the
	// transition table. No state is changed and no log entry is written.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrStoreUnavailable marks an unreachable persistent store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RateLimitedError indicates an HTTP 429. Retryable with backoff; RetryAfter
// carries the server-provided delay when present.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited fetching %s (retry after %s)", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited fetching %s", e.URL)
}

// NetworkError wraps timeouts and connection failures. Retryable.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FetchError covers any other non-2xx response. Retryable with capped backoff.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s returned status %d", e.URL, e.StatusCode)
}

// IsRetryable reports whether the fetch error class may be retried.
// Challenge detection is surfaced for operator intervention instead of
// being retried, to avoid escalating detection.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChallengeDetected) {
		return false
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return true
	}
	return false
}

// RetryAfterHint extracts a server-mandated delay from the error chain, or
// zero when none is present.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
