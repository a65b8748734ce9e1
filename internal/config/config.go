// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/harlowes/magpie/internal/marketplace"
	"github.com/harlowes/magpie/internal/suggest"
)

// LoadSuggestConfig loads suggestion client configuration with this
// precedence:
// 1. Viper configuration (from config file or MAGPIE_ env vars)
// 2. Provider environment variables (ANTHROPIC_API_KEY / OPENAI_API_KEY)
// 3. Default values
func LoadSuggestConfig() suggest.Config {
	cfg := suggest.Config{
		Provider:  "anthropic",
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 2048,
		RateLimit: 20,
		CacheTTL:  15 * time.Minute,
		Timeout:   45 * time.Second,
	}

	if v := viper.GetString("suggest.provider"); v != "" {
		cfg.Provider = v
	}
	if v := viper.GetString("suggest.model"); v != "" {
		cfg.Model = v
	}
	if v := viper.GetString("suggest.api_key"); v != "" {
		cfg.APIKey = v
	}
	if v := viper.GetInt("suggest.max_tokens"); v > 0 {
		cfg.MaxTokens = v
	}
	if v := viper.GetInt("suggest.rate_limit"); v > 0 {
		cfg.RateLimit = v
	}
	if v := viper.GetDuration("suggest.cache_ttl"); v > 0 {
		cfg.CacheTTL = v
	}
	if v := viper.GetDuration("suggest.timeout"); v > 0 {
		cfg.Timeout = v
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	return cfg
}

// LoadMarketplaceConfig loads marketplace lookup configuration from Viper,
// with MARKETPLACE_API_KEY as the environment fallback for the key.
func LoadMarketplaceConfig() marketplace.Config {
	cfg := marketplace.Config{
		BaseURL:   viper.GetString("marketplace.base_url"),
		APIKey:    viper.GetString("marketplace.api_key"),
		Timeout:   viper.GetDuration("marketplace.timeout"),
		MaxRetry:  viper.GetInt("marketplace.max_retry"),
		SearchTop: viper.GetInt("marketplace.search_top"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MARKETPLACE_API_KEY")
	}
	return cfg
}
