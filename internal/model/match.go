package model

import "time"

// MatchMethod indicates which matching layer produced a marketplace match.
type MatchMethod string

// Match method constants, ordered from most to least reliable.
const (
	MethodCodeExact       MatchMethod = "code_exact"
	MethodTitleSimilarity MatchMethod = "title_similarity"
	MethodBrandModel      MatchMethod = "brand_model"
	MethodNone            MatchMethod = "none"
)

// MarketplaceMatch is the result of matching a SourceItem to a marketplace
// listing. Method none with zero confidence is a normal outcome, not an error.
type MarketplaceMatch struct {
	MatchedAt     time.Time
	MarketplaceID string
	Method        MatchMethod
	ListingTitle  string
	Confidence    float64
	ListingPrice  float64
}

// Matched reports whether the match actually found a listing.
func (m *MarketplaceMatch) Matched() bool {
	return m.Method != MethodNone && m.MarketplaceID != ""
}
