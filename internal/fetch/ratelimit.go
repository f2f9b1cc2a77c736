package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/talentwire/jobharvest/internal/metrics"
)

// Limiter manages per-source token buckets. Default is one in-flight
// request per source; cross-source concurrency is bounded only by the
// worker pool.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// LimiterConfig holds rate limiter configuration.
type LimiterConfig struct {
	DefaultRPS   float64
	DefaultBurst int
}

// NewLimiter creates a new Limiter.
func NewLimiter(cfg LimiterConfig) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the source, respecting the
// context.
func (l *Limiter) Wait(ctx context.Context, sourceID string) error {
	l.mu.Lock()
	limiter, exists := l.limiters[sourceID]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[sourceID] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.ObserveRateLimitDelay(sourceID, time.Since(start))
	return nil
}

// InterPageDelay returns a randomized delay in [delay, 2*delay] so the
// request cadence toward one host is never uniform.
func InterPageDelay(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return delay + time.Duration(rand.Int64N(int64(delay)+1))
}

// Pause sleeps for the duration unless the context finishes first.
func Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
