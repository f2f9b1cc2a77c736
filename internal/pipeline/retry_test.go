package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy()

	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(errors.New("boom"), p.MaxAttempts))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(ErrChallengeDetected, 1))

	require.True(t, p.ShouldRetry(&RateLimitedError{URL: "https://x"}, 1))
	require.True(t, p.ShouldRetry(&NetworkError{URL: "https://x", Err: errors.New("refused")}, 1))
	require.True(t, p.ShouldRetry(&FetchError{URL: "https://x", StatusCode: 502}, 1))
}

func TestRetryPolicy_BackoffHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy()
	err := &RateLimitedError{URL: "https://x", RetryAfter: 2 * time.Second}
	require.Equal(t, 2*time.Second, p.Backoff(err, 0))

	// Hint above the cap is clamped.
	err.RetryAfter = time.Minute
	require.Equal(t, p.MaxDelay, p.Backoff(err, 0))
}

func TestRetryPolicy_BackoffIsCappedAndJittered(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy()
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(&FetchError{StatusCode: 500}, attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, p.MaxDelay)
	}
}

func TestRetryPolicy_DoStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	p := &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrChallengeDetected
	})
	require.ErrorIs(t, err, ErrChallengeDetected)
	require.Equal(t, 0, attempts)
	require.Equal(t, 1, calls)
}

func TestRetryPolicy_DoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	p := &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &FetchError{URL: "https://x", StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 3, calls)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(ErrChallengeDetected))
	require.False(t, IsRetryable(errors.New("misc")))
	require.True(t, IsRetryable(&RateLimitedError{}))
	require.True(t, IsRetryable(&NetworkError{Err: errors.New("reset")}))
	require.True(t, IsRetryable(&FetchError{StatusCode: 500}))
}
