package model

import "time"

// ReportRow is one line of accumulated output for a processed item, flushed
// to durable storage in small batches.
type ReportRow struct {
	RecordedAt    time.Time
	SourceID      string
	Title         string
	MarketplaceID string
	Method        MatchMethod
	Supplier      string
	SourcePrice   float64
	ListingPrice  float64
	Confidence    float64
}
