// Package model defines the core domain models used throughout the application.
package model

import (
	"net/url"
	"strings"
	"time"
)

// SourceItem represents a single product harvested from a supplier page.
// Once captured it is immutable; a fresher scrape supersedes it by SourceID.
type SourceItem struct {
	HarvestedAt time.Time
	SourceID    string // stable key: product code if present, else normalized source URL
	Title       string
	ProductCode string // optional global trade code (EAN/UPC)
	SourceURL   string
	ImageURL    string
	Supplier    string
	Price       float64 // source currency
}

// ResolveSourceID returns the stable identifier for this item: the product
// code when present, otherwise the normalized source URL.
func (i *SourceItem) ResolveSourceID() string {
	if i.ProductCode != "" {
		return i.ProductCode
	}
	return NormalizeSourceURL(i.SourceURL)
}

// NormalizeSourceURL canonicalizes a supplier URL for use as a stable key:
// lowercased host, no scheme, no query, no fragment, no trailing slash.
func NormalizeSourceURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	path := strings.TrimRight(u.Path, "/")
	return strings.ToLower(u.Host) + path
}
