// Package htmlfetch implements the plain-HTTP page fetcher using gocolly.
package htmlfetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/talentwire/jobharvest/internal/fetch"
	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements fetch.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport shared across requests.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Non-2xx statuses are mapped onto the
// pipeline error taxonomy; the response diagnostics are still returned so
// the caller can record the page.
func (f *Fetcher) Fetch(ctx context.Context, request fetch.Request) (fetch.Response, error) {
	var (
		result   fetch.Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL); err != nil {
		return result, err
	}
	if fetchErr != nil {
		return result, fetchErr
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request fetch.Request,
	start time.Time,
	result *fetch.Response,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if request.UserAgent != "" {
		collector.UserAgent = request.UserAgent
	} else if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := request.Timeout
	if timeout == 0 {
		timeout = f.cfg.Timeout
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range request.Headers {
			r.Headers.Set(key, value)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = fetch.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			retryAfter := ""
			if r.Headers != nil {
				retryAfter = r.Headers.Get("Retry-After")
			}
			*result = fetch.Response{
				URL:        request.URL,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			*fetchErr = fetch.MapResponse(request.URL, r.StatusCode, retryAfter, r.Body)
			return
		}
		*fetchErr = classifyTransportError(request.URL, err)
	})

	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return classifyTransportError(url, err)
		}
		return nil
	}
}

// classifyTransportError folds timeouts and connection failures into
// NetworkError; anything else passes through wrapped.
func classifyTransportError(url string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &pipeline.NetworkError{URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &pipeline.NetworkError{URL: url, Err: err}
	}
	return fmt.Errorf("visit %s: %w", url, err)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
