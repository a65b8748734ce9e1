package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/service"
)

// Config holds settings for the HTTP marketplace client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxRetry  int
	SearchTop int
}

// HTTPClient implements Client against the marketplace's lookup API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	searchTop  int
	retryOpts  service.RetryOptions
}

// NewHTTPClient creates a marketplace lookup client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: marketplace base URL", common.ErrMissingConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	searchTop := cfg.SearchTop
	if searchTop <= 0 {
		searchTop = 10
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}

	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		searchTop: searchTop,
		retryOpts: service.RetryOptions{
			MaxAttempts:  maxRetry,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     20 * time.Second,
			Multiplier:   2.0,
		},
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// LookupByCode finds the listing for an exact trade code.
func (c *HTTPClient) LookupByCode(ctx context.Context, code string) (*Listing, error) {
	if code == "" {
		return nil, common.ErrNotFound
	}

	var listing *Listing
	err := common.WithRetry(ctx, func() error {
		var callErr error
		listing, callErr = c.getListing(ctx, fmt.Sprintf("%s/listings?code=%s", c.baseURL, url.QueryEscape(code)))
		return callErr
	}, c.retryOpts)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return listing, nil
}

// SearchByTitle returns the top listings for a free-text query.
func (c *HTTPClient) SearchByTitle(ctx context.Context, query string) ([]Listing, error) {
	if query == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), c.searchTop)

	var listings []Listing
	err := common.WithRetry(ctx, func() error {
		body, callErr := c.get(ctx, endpoint)
		if callErr != nil {
			return callErr
		}
		var response struct {
			Results []Listing `json:"results"`
		}
		if jsonErr := json.Unmarshal(body, &response); jsonErr != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedResponse, jsonErr)
		}
		listings = response.Results
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (c *HTTPClient) getListing(ctx context.Context, endpoint string) (*Listing, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var listing Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if listing.ID == "" {
		return nil, &common.RetryableError{Err: common.ErrNotFound, Retryable: false}
	}
	return &listing, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &common.RetryableError{Err: common.ErrNotFound, Retryable: false}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: marketplace", common.ErrRateLimit)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("marketplace API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
