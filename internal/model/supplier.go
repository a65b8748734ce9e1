package model

// Supplier identifies one third-party retail site to crawl.
type Supplier struct {
	Name     string
	EntryURL string
	Currency string
}
