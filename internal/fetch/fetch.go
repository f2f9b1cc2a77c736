// Package fetch implements the multi-strategy fetch engine: plain HTTP,
// syndication feeds, and rendered-browser fetches with a stealth profile,
// under per-source rate limits and jittered pagination delays.
package fetch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Request captures everything needed to fetch one URL.
type Request struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Render    bool
}

// Response is the result returned by a PageFetcher implementation.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// PageFetcher fetches a single URL and returns the body plus metadata.
type PageFetcher interface {
	Fetch(ctx context.Context, request Request) (Response, error)
}

// Strategy is the fetch approach chosen for a target.
type Strategy string

// Strategies, mirroring the source types they serve.
const (
	StrategyFeed Strategy = "feed"
	StrategyHTML Strategy = "html"
)

// SelectStrategy is the pure decision function mapping source config and
// target URL to a fetch strategy. API and hybrid sources compose feed and
// HTML passes; the per-URL decision is which of the two applies.
func SelectStrategy(src pipeline.Source, targetURL string) Strategy {
	switch src.Type {
	case pipeline.SourceTypeFeed:
		return StrategyFeed
	case pipeline.SourceTypeHTML:
		return StrategyHTML
	case pipeline.SourceTypeAPI, pipeline.SourceTypeHybrid:
		if src.FeedURL != "" && targetURL == src.FeedURL {
			return StrategyFeed
		}
		return StrategyHTML
	default:
		return StrategyHTML
	}
}

// RenderDecision is the pure decision for promoting a target to the
// rendered-browser fetcher.
type RenderDecision struct {
	ForceAll      bool
	RequiredHosts map[string]struct{}
}

// NewRenderDecision builds the decision table from config.
func NewRenderDecision(forceAll bool, hosts []string) RenderDecision {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			set[h] = struct{}{}
		}
	}
	return RenderDecision{ForceAll: forceAll, RequiredHosts: set}
}

// ShouldRender reports whether the target needs script execution: the
// source says so, the host is on the render-required allow-list, or
// rendering is forced globally.
func (d RenderDecision) ShouldRender(src pipeline.Source, host string) bool {
	if d.ForceAll || src.RenderRequired {
		return true
	}
	_, ok := d.RequiredHosts[strings.ToLower(host)]
	return ok
}

// challengeMarkers are body signals of a bot challenge behind a 403.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf-challenge",
	"captcha",
	"are you a robot",
	"access denied",
	"unusual traffic",
	"attention required",
}

// DetectChallenge reports whether the body of a denial looks like a bot
// challenge rather than a genuine authorization failure.
func DetectChallenge(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// MapResponse converts a non-2xx response into the fetch error taxonomy.
// Returns nil for 2xx.
func MapResponse(url string, statusCode int, retryAfter string, body []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == 429:
		return &pipeline.RateLimitedError{URL: url, RetryAfter: parseRetryAfter(retryAfter)}
	case statusCode == 403 && DetectChallenge(body):
		return pipeline.ErrChallengeDetected
	default:
		return &pipeline.FetchError{URL: url, StatusCode: statusCode}
	}
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The HTTP
// date form is rare on rate limiters and falls back to zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
