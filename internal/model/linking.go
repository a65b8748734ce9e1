package model

import "time"

// LinkingRecord is the durable join between a SourceItem and its marketplace
// match, keyed by SourceID. The store holds at most one record per SourceID;
// conflicting writes update in place rather than duplicate.
type LinkingRecord struct {
	CreatedAt     time.Time
	LastUpdated   time.Time
	SourceID      string
	MarketplaceID string
	Method        MatchMethod
	Supplier      string
	Confidence    float64
}

// Supersedes reports whether a new match result should replace this record.
// A lower-confidence re-match never downgrades an existing record.
func (r *LinkingRecord) Supersedes(confidence float64) bool {
	return confidence >= r.Confidence
}
