// Package remote answers collection jobs from an HTTP resolver service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tomahawk/internal/job"
	"tomahawk/internal/source"
)

const (
	userAgent       = "tomahawk/1.0"
	maxResponseSize = 8 << 20
)

// Options configures a Client.
type Options struct {
	Name              string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client is a job.Source that POSTs each job to {BaseURL}/{method} with the
// job arguments as a JSON object and decodes the JSON object it gets back.
type Client struct {
	name       string
	httpClient *http.Client
	apiURL     string
	limiter    *rate.Limiter
}

// New creates a remote client. A non-positive rate disables limiting.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		name:       opts.Name,
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiURL:     strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, opts.Burst),
	}
}

func (c *Client) Name() string { return c.name }

// Run implements job.Source.
func (c *Client) Run(ctx context.Context, method string, args job.Args) (job.Tree, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if args == nil {
		args = job.Args{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s arguments: %w", method, err)
	}

	reqURL := c.apiURL + "/" + url.PathEscape(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", c.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s request failed: %w", c.name, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", source.ErrUnknownMethod, method)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s %s returned %d: %s", c.name, method, resp.StatusCode, snippet(data))
	}

	tree, err := job.DecodeTree(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, method, err)
	}
	return tree, nil
}

func snippet(data []byte) string {
	const n = 200
	s := strings.TrimSpace(string(data))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
