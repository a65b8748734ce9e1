// Package match implements the layered matching engine that associates
// harvested source items with marketplace listings.
package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/harlowes/magpie/internal/marketplace"
	"github.com/harlowes/magpie/internal/model"
)

// Config holds configuration options for the matcher.
type Config struct {
	// ConfidenceThreshold is the score a layer must reach to stop the
	// ladder; layers below it fall through to the next.
	ConfidenceThreshold float64
	// LayerTimeout bounds each layer's external calls. A timeout means
	// that layer failed, not that the item failed.
	LayerTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		LayerTimeout:        20 * time.Second,
	}
}

// codeExactConfidence is the confidence assigned to a direct trade-code hit.
const codeExactConfidence = 0.95

// Matcher tries match layers in order and stops at the first confident result.
type Matcher struct {
	client marketplace.Client
	cfg    Config
}

// New creates a matcher backed by the given marketplace client.
func New(client marketplace.Client, cfg Config) *Matcher {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	if cfg.LayerTimeout <= 0 {
		cfg.LayerTimeout = DefaultConfig().LayerTimeout
	}
	return &Matcher{client: client, cfg: cfg}
}

// Match returns the best marketplace match for an item. A no-match result
// (method none, confidence 0) is a normal, expected outcome: Match only
// returns an error when the context itself is canceled.
func (m *Matcher) Match(ctx context.Context, item model.SourceItem) (model.MarketplaceMatch, error) {
	layers := []struct {
		fn     func(ctx context.Context, item model.SourceItem) *model.MarketplaceMatch
		method model.MatchMethod
	}{
		{m.matchByCode, model.MethodCodeExact},
		{m.matchByTitle, model.MethodTitleSimilarity},
		{m.matchByBrandModel, model.MethodBrandModel},
	}

	for _, layer := range layers {
		if ctx.Err() != nil {
			return model.MarketplaceMatch{}, ctx.Err()
		}

		layerCtx, cancel := context.WithTimeout(ctx, m.cfg.LayerTimeout)
		result := layer.fn(layerCtx, item)
		cancel()

		if result == nil {
			continue
		}
		if result.Confidence >= m.cfg.ConfidenceThreshold {
			result.MatchedAt = time.Now()
			slog.Debug("Item matched",
				"source_id", item.SourceID,
				"method", result.Method,
				"marketplace_id", result.MarketplaceID,
				"confidence", result.Confidence)
			return *result, nil
		}
	}

	return model.MarketplaceMatch{
		Method:    model.MethodNone,
		MatchedAt: time.Now(),
	}, nil
}

// matchByCode does a direct lookup on the item's global trade code.
func (m *Matcher) matchByCode(ctx context.Context, item model.SourceItem) *model.MarketplaceMatch {
	if item.ProductCode == "" {
		return nil
	}

	listing, err := m.client.LookupByCode(ctx, item.ProductCode)
	if err != nil {
		slog.Debug("Code lookup failed, falling through",
			"source_id", item.SourceID, "error", err)
		return nil
	}

	return &model.MarketplaceMatch{
		MarketplaceID: listing.ID,
		Method:        model.MethodCodeExact,
		Confidence:    codeExactConfidence,
		ListingTitle:  listing.Title,
		ListingPrice:  listing.Price,
	}
}

// matchByTitle searches with a normalized title and scores candidates by
// token similarity.
func (m *Matcher) matchByTitle(ctx context.Context, item model.SourceItem) *model.MarketplaceMatch {
	query := NormalizeTitle(item.Title)
	if query == "" {
		return nil
	}

	listings, err := m.client.SearchByTitle(ctx, query)
	if err != nil {
		slog.Debug("Title search failed, falling through",
			"source_id", item.SourceID, "error", err)
		return nil
	}

	best, score := bestCandidate(query, listings)
	if best == nil {
		return nil
	}

	return &model.MarketplaceMatch{
		MarketplaceID: best.ID,
		Method:        model.MethodTitleSimilarity,
		Confidence:    score,
		ListingTitle:  best.Title,
		ListingPrice:  best.Price,
	}
}

// matchByBrandModel extracts probable brand and model tokens and runs a
// targeted search on just those.
func (m *Matcher) matchByBrandModel(ctx context.Context, item model.SourceItem) *model.MarketplaceMatch {
	query := ExtractBrandModel(item.Title)
	if query == "" {
		return nil
	}

	listings, err := m.client.SearchByTitle(ctx, query)
	if err != nil {
		slog.Debug("Brand/model search failed, falling through",
			"source_id", item.SourceID, "error", err)
		return nil
	}

	best, score := bestCandidate(NormalizeTitle(item.Title), listings)
	if best == nil {
		return nil
	}

	return &model.MarketplaceMatch{
		MarketplaceID: best.ID,
		Method:        model.MethodBrandModel,
		Confidence:    score,
		ListingTitle:  best.Title,
		ListingPrice:  best.Price,
	}
}

// bestCandidate scores listings against the normalized source title and
// returns the highest scorer.
func bestCandidate(normalizedTitle string, listings []marketplace.Listing) (*marketplace.Listing, float64) {
	var best *marketplace.Listing
	var bestScore float64
	for i := range listings {
		score := Similarity(normalizedTitle, NormalizeTitle(listings[i].Title))
		if score > bestScore {
			best = &listings[i]
			bestScore = score
		}
	}
	return best, bestScore
}
