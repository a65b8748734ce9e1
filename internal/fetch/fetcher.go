// Package fetch provides the page-content fetcher used by discovery and harvesting.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harlowes/magpie/internal/common"
)

// Page is the result of fetching one URL.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
}

// OK reports whether the fetch returned a 2xx response.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher retrieves page content. A non-2xx status or timeout is a
// recoverable failure for callers, never fatal for the run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// Config holds settings for the HTTP fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// NewHTTPFetcher creates an HTTP-backed page fetcher with an explicit timeout.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "magpie/1.0"
	}

	return &HTTPFetcher{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch performs an HTTP GET and returns the page body and status. Transport
// failures and non-2xx statuses both wrap common.ErrFetchFailed; the page is
// still returned alongside the error when a response was received.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", common.ErrFetchFailed, err)
	}

	page := &Page{
		URL:        url,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}

	if !page.OK() {
		return page, fmt.Errorf("%w: status %d for %s", common.ErrFetchFailed, resp.StatusCode, url)
	}

	return page, nil
}
