// Package suggest provides AI completion clients for catalog section suggestions.
//
// The external service gives no guarantee on response shape: callers must
// defensively parse its output and treat malformed text as a recoverable
// failure, never as fatal for the run.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harlowes/magpie/internal/common"
)

// Client defines the interface for suggestion providers.
type Client interface {
	// Suggest sends a prompt at the given sampling temperature and returns
	// the raw completion text.
	Suggest(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Config holds configuration for suggestion clients.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	RateLimit int // requests per minute
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// NewClient creates a suggestion client for the configured provider, wrapped
// with rate limiting and a prompt-keyed response cache.
func NewClient(cfg Config) (Client, error) {
	var inner Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		inner, err = newOpenAIClient(cfg)
	case "anthropic":
		inner, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported suggestion provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion client: %w", err)
	}

	return &throttledClient{
		inner:   inner,
		limiter: newRateLimiter(cfg.RateLimit),
		cache:   newResponseCache(cfg.CacheTTL),
	}, nil
}

// throttledClient decorates a provider client with rate limiting and caching.
type throttledClient struct {
	inner   Client
	limiter *rateLimiter
	cache   *responseCache
}

func (c *throttledClient) Suggest(ctx context.Context, prompt string, temperature float64) (string, error) {
	if text, found := c.cache.get(prompt, temperature); found {
		return text, nil
	}

	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}

	text, err := c.inner.Suggest(ctx, prompt, temperature)
	if err != nil {
		return "", err
	}

	c.cache.set(prompt, temperature, text)
	return text, nil
}
