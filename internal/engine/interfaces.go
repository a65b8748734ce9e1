package engine

import (
	"context"

	"github.com/harlowes/magpie/internal/harvest"
	"github.com/harlowes/magpie/internal/model"
)

// SectionDecider chooses the next catalog sections to crawl for a supplier.
type SectionDecider interface {
	Decide(ctx context.Context, supplier model.Supplier, history *model.DiscoveryHistory) (*model.DecisionResult, error)
}

// ItemHarvester extracts source items from one section page.
type ItemHarvester interface {
	Harvest(ctx context.Context, sectionURL string) ([]model.SourceItem, error)
}

// ItemMatcher resolves a source item against the marketplace.
type ItemMatcher interface {
	Match(ctx context.Context, item model.SourceItem) (model.MarketplaceMatch, error)
}

// HarvesterFactory builds a harvester for one supplier's selector config.
// Harvesters are per-supplier because the CSS selectors differ per site.
type HarvesterFactory func(config harvest.SupplierConfig) ItemHarvester

// RunObserver receives a callback as each item completes, for progress UI.
// Implementations must be safe for concurrent use across suppliers.
type RunObserver interface {
	ItemProcessed(supplier string, matched bool)
}
