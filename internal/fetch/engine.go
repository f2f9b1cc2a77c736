package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/blob"
	"github.com/talentwire/jobharvest/internal/extract"
	"github.com/talentwire/jobharvest/internal/fetch/feed"
	"github.com/talentwire/jobharvest/internal/pipeline"
)

// defaultMaxPages caps pagination when the source does not set a limit.
const defaultMaxPages = 10

// PageResult carries one fetched page: its diagnostics, the extracted
// candidates, and the terminal error when every retry failed.
type PageResult struct {
	Page       pipeline.FetchPage
	Candidates []pipeline.RawItemCandidate
	Dropped    int
	Retries    int
	Err        error

	nextURL string
}

// EngineConfig controls engine-wide fetch behavior.
type EngineConfig struct {
	UserAgent   string
	BlobPrefix  string
	ContentType string
	Timeout     time.Duration
}

// Engine executes the fetch strategies for a source: feed documents,
// paginated HTML, or rendered-browser fetches, within the configured
// concurrency, rate, and page limits.
type Engine struct {
	plain     PageFetcher
	rendered  PageFetcher
	extractor *extract.Extractor
	limiter   *Limiter
	render    RenderDecision
	blobs     blob.Store
	clock     pipeline.Clock
	retry     *pipeline.RetryPolicy
	cfg       EngineConfig
	logger    *zap.Logger
}

// NewEngine constructs an Engine. The rendered fetcher may be a noop when
// headless browsing is disabled.
func NewEngine(
	plain PageFetcher,
	rendered PageFetcher,
	extractor *extract.Extractor,
	limiter *Limiter,
	render RenderDecision,
	blobs blob.Store,
	clock pipeline.Clock,
	retry *pipeline.RetryPolicy,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		plain:     plain,
		rendered:  rendered,
		extractor: extractor,
		limiter:   limiter,
		render:    render,
		blobs:     blobs,
		clock:     clock,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
	}
}

// FetchSource runs the full fetch for one source and returns per-page
// results. Feed sources fetch their single document; HTML sources paginate
// from the base URL; api and hybrid sources compose the two, feed document
// first and then the HTML pagination pass. A page-level error never aborts
// the remaining work; it is recorded on its page result and that pass ends
// there. A non-nil stop callback is consulted between pages: when it
// reports true the in-flight page completes but no further pages are
// scheduled.
func (e *Engine) FetchSource(ctx context.Context, runID string, src pipeline.Source, stop func() bool) []PageResult {
	maxPages := src.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var results []PageResult
	if feedURL := feedTarget(src); feedURL != "" {
		if ctx.Err() != nil || (stop != nil && stop()) {
			return results
		}
		results = append(results, e.fetchPage(ctx, runID, src, feedURL, 1))
	}
	if src.Type == pipeline.SourceTypeFeed {
		return results
	}
	return e.paginate(ctx, runID, src, results, maxPages, stop)
}

// feedTarget returns the URL of the feed pass, or "" when the source has
// no feed component.
func feedTarget(src pipeline.Source) string {
	switch src.Type {
	case pipeline.SourceTypeFeed:
		if src.FeedURL != "" {
			return src.FeedURL
		}
		return src.BaseURL
	case pipeline.SourceTypeAPI, pipeline.SourceTypeHybrid:
		return src.FeedURL
	default:
		return ""
	}
}

// paginate is the HTML pass: follow next-page links from the base URL for
// up to maxPages pages. Page numbering continues after any feed pass.
func (e *Engine) paginate(ctx context.Context, runID string, src pipeline.Source, results []PageResult, maxPages int, stop func() bool) []PageResult {
	targetURL := src.BaseURL
	signatures := map[string]int{}
	base := len(results)
	for n := 1; n <= maxPages; n++ {
		if ctx.Err() != nil {
			break
		}
		if stop != nil && stop() {
			break
		}
		result := e.fetchPage(ctx, runID, src, targetURL, base+n)
		results = append(results, result)
		if result.Err != nil {
			break
		}
		if SelectStrategy(src, targetURL) == StrategyFeed {
			// A feed is a single document.
			break
		}
		// Zero new items ends pagination immediately: drifting search
		// params otherwise produce false pagination forever.
		if len(result.Candidates) == 0 {
			break
		}
		sig := extract.Signature(result.Candidates)
		signatures[sig]++
		if signatures[sig] >= 2 {
			e.logger.Debug("pagination signature repeated, stopping",
				zap.String("source_id", src.ID),
				zap.Int("page", base+n),
			)
			break
		}
		next := result.nextURL
		if next == "" || next == targetURL {
			break
		}
		targetURL = next

		Pause(ctx, InterPageDelay(src.RateLimitDelay))
	}
	return results
}

func (e *Engine) fetchPage(ctx context.Context, runID string, src pipeline.Source, targetURL string, pageNum int) PageResult {
	result := PageResult{
		Page: pipeline.FetchPage{
			RunID:      runID,
			URL:        targetURL,
			PageNumber: pageNum,
			FetchedAt:  e.clock.Now(),
		},
	}

	strategy := SelectStrategy(src, targetURL)
	result.Page.Type = string(strategy)

	useRender := strategy == StrategyHTML && e.render.ShouldRender(src, hostOf(targetURL))
	fetcher := e.plain
	if useRender {
		fetcher = e.rendered
	}

	retry := e.retry.WithAttempts(src.RetryAttempts)
	var resp Response
	attempts, err := retry.Do(ctx, func(ctx context.Context) error {
		if waitErr := e.limiter.Wait(ctx, src.ID); waitErr != nil {
			return waitErr
		}
		var fetchErr error
		resp, fetchErr = fetcher.Fetch(ctx, Request{
			URL:       targetURL,
			Timeout:   e.timeoutFor(src),
			UserAgent: e.cfg.UserAgent,
			Headers:   src.Headers,
			Render:    useRender,
		})
		return fetchErr
	})
	result.Retries = attempts
	result.Page.StatusCode = resp.StatusCode
	result.Page.Bytes = len(resp.Body)
	result.Page.Duration = resp.Duration

	if err != nil {
		result.Err = err
		result.Page.ErrorText = err.Error()
		if errors.Is(err, pipeline.ErrChallengeDetected) {
			e.logger.Warn("bot challenge detected, surfacing to operator",
				zap.String("source_id", src.ID),
				zap.String("url", targetURL),
			)
		}
		return result
	}

	candidates, dropped, err := e.parsePage(strategy, resp.Body, targetURL, src.Selectors)
	if err != nil {
		result.Err = err
		result.Page.ErrorText = err.Error()
		return result
	}
	result.Candidates = candidates
	result.Dropped = dropped
	result.Page.ItemCount = len(candidates)

	if strategy == StrategyHTML {
		result.nextURL = e.extractor.NextPageURL(resp.Body, targetURL, src.Selectors)
	}

	e.archiveSnapshot(ctx, runID, pageNum, resp.Body, &result)
	return result
}

func (e *Engine) parsePage(strategy Strategy, body []byte, targetURL string, selectors pipeline.Selectors) ([]pipeline.RawItemCandidate, int, error) {
	if strategy == StrategyFeed {
		candidates, err := feed.Parse(body)
		if err != nil {
			return nil, 0, err
		}
		return candidates, 0, nil
	}
	return e.extractor.Extract(body, targetURL, selectors)
}

// archiveSnapshot stores the raw page body for auditability. Best effort:
// a failed archive never fails the page.
func (e *Engine) archiveSnapshot(ctx context.Context, runID string, pageNum int, body []byte, result *PageResult) {
	if e.blobs == nil || len(body) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s/page-%d.html", e.cfg.BlobPrefix, runID, pageNum)
	uri, err := e.blobs.PutObject(ctx, path, e.cfg.ContentType, body)
	if err != nil {
		e.logger.Warn("snapshot archive failed",
			zap.String("run_id", runID),
			zap.Int("page", pageNum),
			zap.Error(err),
		)
		return
	}
	result.Page.SnapshotURI = uri
}

func (e *Engine) timeoutFor(src pipeline.Source) time.Duration {
	if src.RequestTimeout > 0 {
		return src.RequestTimeout
	}
	return e.cfg.Timeout
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
