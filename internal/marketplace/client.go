// Package marketplace provides the lookup client for the target marketplace.
package marketplace

import (
	"context"
)

// Listing is one marketplace listing returned by a lookup.
type Listing struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Brand string  `json:"brand,omitempty"`
	Price float64 `json:"price"`
}

// Client defines marketplace lookups. The service is rate limited; callers
// get common.ErrRateLimit on throttling and must back off.
type Client interface {
	// LookupByCode finds the listing for a global trade code. Returns
	// common.ErrNotFound when the code has no listing.
	LookupByCode(ctx context.Context, code string) (*Listing, error)
	// SearchByTitle returns the top candidates for a search query, best
	// first. An empty slice is a normal outcome.
	SearchByTitle(ctx context.Context, query string) ([]Listing, error)
}
