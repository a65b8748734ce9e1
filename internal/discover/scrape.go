package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/harlowes/magpie/internal/fetch"
	"github.com/harlowes/magpie/internal/model"
)

// structuralTier is the deterministic fallback: no AI call, just a crawl of
// the supplier's entry page extracting candidate section links by
// navigation-link heuristics. It always terminates and returns some result
// while the entry page is reachable.
type structuralTier struct {
	fetcher fetch.Fetcher
}

func (t *structuralTier) tierName() model.DecisionTier {
	return model.TierStructural
}

// navSelectors are tried in order; the first that yields links wins. Plain
// anchors are the last resort, filtered harder by path heuristics.
var navSelectors = []string{
	"nav a[href]",
	"header a[href]",
	".menu a[href], .nav a[href], .navigation a[href]",
	"ul.categories a[href], .category-list a[href], .sidebar a[href]",
	"a[href]",
}

// sectionPathHints mark URL paths that look like catalog sections.
var sectionPathHints = []string{
	"/category/", "/categories/", "/c/", "/collections/", "/shop/",
	"/department/", "/range/", "/browse/", "/products/",
}

func (t *structuralTier) attempt(ctx context.Context, dc *decisionContext) (*model.DecisionResult, error) {
	page, err := t.fetcher.Fetch(ctx, dc.supplier.EntryURL)
	if err != nil {
		return nil, fmt.Errorf("entry page fetch: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("entry page parse: %w", err)
	}

	base, err := url.Parse(dc.supplier.EntryURL)
	if err != nil {
		return nil, fmt.Errorf("entry URL parse: %w", err)
	}

	var candidates []string
	seen := make(map[string]bool)
	for i, selector := range navSelectors {
		lastResort := i == len(navSelectors)-1
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			candidate, ok := resolveSectionLink(base, href, lastResort)
			if !ok || seen[candidate] {
				return
			}
			seen[candidate] = true
			candidates = append(candidates, candidate)
		})
		if len(candidates) > 0 {
			break
		}
	}

	return filterCandidates(dc, model.TierStructural, candidates,
		fmt.Sprintf("structural scrape of entry page found %d candidate links", len(candidates))), nil
}

// resolveSectionLink turns an href into an absolute same-host section URL,
// or reports that it is not a plausible catalog section.
func resolveSectionLink(base *url.URL, href string, requireHint bool) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return "", false
	}

	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != base.Host {
		return "", false
	}

	path := strings.ToLower(u.Path)
	if path == "" || path == "/" {
		return "", false
	}
	for _, skip := range []string{"/cart", "/basket", "/checkout", "/login", "/account", "/register", "/terms", "/privacy", "/contact", "/about"} {
		if strings.HasPrefix(path, skip) {
			return "", false
		}
	}

	if requireHint && !hasSectionHint(path) {
		return "", false
	}

	u.Fragment = ""
	u.RawQuery = ""
	return u.String(), true
}

func hasSectionHint(path string) bool {
	for _, hint := range sectionPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}
