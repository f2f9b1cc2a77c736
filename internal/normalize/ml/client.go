// Package ml implements the network-backed text parser client.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talentwire/jobharvest/internal/normalize"
)

// maxResponseBytes bounds how much of a parse response is read.
const maxResponseBytes = 1 << 20

// Config holds the parser service settings.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client calls the external text-parsing service. Implements
// normalize.TextParser.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Parse posts the listing text and decodes the structured candidate.
// Any transport or decode failure is returned as-is; the caller falls
// back to the rule-based result.
func (c *Client) Parse(ctx context.Context, req normalize.ParseRequest) (normalize.ParseResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return normalize.ParseResult{}, fmt.Errorf("encode parse request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return normalize.ParseResult{}, fmt.Errorf("build parse request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return normalize.ParseResult{}, fmt.Errorf("call text parser: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return normalize.ParseResult{}, fmt.Errorf("text parser returned status %d", resp.StatusCode)
	}

	var result normalize.ParseResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return normalize.ParseResult{}, fmt.Errorf("decode parse response: %w", err)
	}
	return result, nil
}
