package discover

import (
	"fmt"
	"sort"
	"strings"
)

// maxExclusions caps how many known URLs and item identifiers are embedded
// in a prompt as exclusion context.
const maxExclusions = 40

// buildPrecisionPrompt biases the service toward high-margin signals:
// clearance, discount, and sale sections.
func buildPrecisionPrompt(dc *decisionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Supplier: %s\nEntry point: %s\n\n", dc.supplier.Name, dc.supplier.EntryURL)
	b.WriteString("Suggest catalog section URLs on this site most likely to contain ")
	b.WriteString("underpriced or discounted products: clearance, sale, outlet, ")
	b.WriteString("end-of-line and seasonal markdown sections.\n\n")

	writeExclusions(&b, dc)

	b.WriteString("\nRespond with one absolute URL per line, nothing else. ")
	fmt.Fprintf(&b, "At most %d URLs.\n", dc.maxSections)
	return b.String()
}

// buildComprehensivePrompt casts a wider net over the whole catalog.
func buildComprehensivePrompt(dc *decisionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Supplier: %s\nEntry point: %s\n\n", dc.supplier.Name, dc.supplier.EntryURL)
	b.WriteString("List catalog section URLs on this site that have not been ")
	b.WriteString("covered yet. Consider every department, not just discount areas: ")
	b.WriteString("household, garden, tools, toys, stationery, pet care, and any ")
	b.WriteString("other product category the site is likely to carry.\n\n")

	writeExclusions(&b, dc)

	b.WriteString("\nRespond with one absolute URL per line, nothing else. ")
	fmt.Fprintf(&b, "At most %d URLs.\n", dc.maxSections)
	return b.String()
}

// buildMinimalPrompt is the terse last AI attempt: just ask for a bare list.
func buildMinimalPrompt(dc *decisionContext) string {
	return fmt.Sprintf("List up to %d category page URLs for the retail site at %s, one per line.",
		dc.maxSections, dc.supplier.EntryURL)
}

// writeExclusions embeds known ground so the service does not repeat itself.
func writeExclusions(b *strings.Builder, dc *decisionContext) {
	if len(dc.history.VisitedSections) > 0 {
		b.WriteString("Already visited, do not suggest again:\n")
		for _, url := range sortedKeys(dc.history.VisitedSections, maxExclusions) {
			fmt.Fprintf(b, "  %s\n", url)
		}
	}
	if len(dc.history.ProcessedItems) > 0 {
		fmt.Fprintf(b, "Products already processed (%d total), sample:\n", len(dc.history.ProcessedItems))
		for _, id := range sortedKeys(dc.history.ProcessedItems, 10) {
			fmt.Fprintf(b, "  %s\n", id)
		}
	}
}

// sortedKeys returns up to limit keys in stable order so prompts are
// deterministic and cache-friendly.
func sortedKeys(set map[string]bool, limit int) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
