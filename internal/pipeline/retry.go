package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// RetryPolicy implements jittered exponential backoff around the pipeline's
// suspension points (fetch, ML parse).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetryPolicy builds a policy with sane defaults.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// WithAttempts overrides the attempt budget, keeping the delay curve.
func (p *RetryPolicy) WithAttempts(attempts int) *RetryPolicy {
	if attempts <= 0 {
		return p
	}
	cp := *p
	cp.MaxAttempts = attempts
	return &cp
}

// ShouldRetry decides whether the error is retryable at the given attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsRetryable(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait duration before the next attempt. A Retry-After
// hint from the server takes precedence over the computed delay.
func (p *RetryPolicy) Backoff(err error, attempt int) time.Duration {
	if hint := RetryAfterHint(err); hint > 0 {
		if hint > p.MaxDelay {
			return p.MaxDelay
		}
		return hint
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

// Do runs fn under the policy, sleeping between attempts while honoring ctx.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !p.ShouldRetry(err, attempt+1) {
			return attempt, err
		}
		wait := p.Backoff(err, attempt)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
