package model

import "time"

// DecisionTier identifies one strategy level in the category decision
// engine's fallback ladder.
type DecisionTier string

// Decision tiers, attempted in strict order; first success wins.
const (
	TierPrecision     DecisionTier = "precision"
	TierComprehensive DecisionTier = "comprehensive"
	TierMinimal       DecisionTier = "minimal"
	TierStructural    DecisionTier = "structural"
)

// DecisionEntry records one discovery attempt, successful or not.
type DecisionEntry struct {
	Timestamp        time.Time
	Tier             DecisionTier
	Rationale        string
	ChosenSections   []string
	RejectedSections []string
}

// SectionStats tracks how productive a catalog section has been.
type SectionStats struct {
	LastVisited time.Time
	URL         string
	ItemsFound  int
}

// DecisionResult is the outcome of one decide() call.
type DecisionResult struct {
	Tier             DecisionTier
	Rationale        string
	ChosenSections   []string
	RejectedSections []string
}

// DiscoveryHistory is a supplier's persisted memory of what the decision
// engine has already explored. It only grows, except by explicit reset.
type DiscoveryHistory struct {
	VisitedSections    map[string]bool
	ProcessedItems     map[string]bool
	SectionPerformance map[string]SectionStats
	Supplier           string
	DecisionLog        []DecisionEntry
}

// NewDiscoveryHistory returns an empty history for a supplier.
func NewDiscoveryHistory(supplier string) *DiscoveryHistory {
	return &DiscoveryHistory{
		Supplier:           supplier,
		VisitedSections:    make(map[string]bool),
		ProcessedItems:     make(map[string]bool),
		SectionPerformance: make(map[string]SectionStats),
	}
}

// MarkVisited records a section URL as explored.
func (h *DiscoveryHistory) MarkVisited(sectionURL string) {
	h.VisitedSections[sectionURL] = true
}

// MarkProcessed records a source identifier as already handled.
func (h *DiscoveryHistory) MarkProcessed(sourceID string) {
	h.ProcessedItems[sourceID] = true
}

// RecordDecision appends an attempt to the decision log.
func (h *DiscoveryHistory) RecordDecision(entry DecisionEntry) {
	h.DecisionLog = append(h.DecisionLog, entry)
}

// RecordHarvest updates section performance after a harvest pass.
func (h *DiscoveryHistory) RecordHarvest(sectionURL string, itemsFound int, at time.Time) {
	h.SectionPerformance[sectionURL] = SectionStats{
		URL:         sectionURL,
		ItemsFound:  itemsFound,
		LastVisited: at,
	}
	h.MarkVisited(sectionURL)
}

// FreshlyVisited reports whether a section was visited within maxAge and so
// should not be re-suggested by any tier.
func (h *DiscoveryHistory) FreshlyVisited(sectionURL string, now time.Time, maxAge time.Duration) bool {
	stats, ok := h.SectionPerformance[sectionURL]
	if !ok {
		return h.VisitedSections[sectionURL]
	}
	return now.Sub(stats.LastVisited) < maxAge
}
