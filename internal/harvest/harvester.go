package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/harlowes/magpie/internal/fetch"
	"github.com/harlowes/magpie/internal/model"
)

// Harvester fetches section pages and extracts source items.
type Harvester struct {
	fetcher fetch.Fetcher
	config  SupplierConfig
}

// New creates a harvester for one supplier.
func New(fetcher fetch.Fetcher, config SupplierConfig) *Harvester {
	return &Harvester{fetcher: fetcher, config: config}
}

// Harvest fetches one section page and extracts every item it can. Items
// missing a title or a link are skipped with a log line; a page that yields
// zero items is not an error.
func (h *Harvester) Harvest(ctx context.Context, sectionURL string) ([]model.SourceItem, error) {
	page, err := h.fetcher.Fetch(ctx, sectionURL)
	if err != nil {
		return nil, fmt.Errorf("section fetch: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("section parse: %w", err)
	}

	base, err := url.Parse(sectionURL)
	if err != nil {
		return nil, fmt.Errorf("section URL parse: %w", err)
	}

	now := time.Now()
	var items []model.SourceItem
	doc.Find(h.config.Selectors.Item).Each(func(i int, sel *goquery.Selection) {
		item, ok := h.extractItem(base, sel, now)
		if !ok {
			slog.Debug("Skipping incomplete item",
				"supplier", h.config.Name,
				"section", sectionURL,
				"position", i)
			return
		}
		items = append(items, item)
	})

	slog.Info("Harvested section",
		"supplier", h.config.Name,
		"section", sectionURL,
		"items", len(items))
	return items, nil
}

func (h *Harvester) extractItem(base *url.URL, sel *goquery.Selection, now time.Time) (model.SourceItem, bool) {
	title := strings.TrimSpace(sel.Find(h.config.Selectors.Title).First().Text())

	href, _ := sel.Find(h.config.Selectors.Link).First().Attr("href")
	if title == "" || href == "" {
		return model.SourceItem{}, false
	}

	link, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return model.SourceItem{}, false
	}

	item := model.SourceItem{
		Title:       title,
		SourceURL:   link.String(),
		Supplier:    h.config.Name,
		HarvestedAt: now,
	}

	priceText := sel.Find(h.config.Selectors.Price).First().Text()
	item.Price = ParsePrice(priceText)

	if h.config.Selectors.Code != "" {
		item.ProductCode = strings.TrimSpace(sel.Find(h.config.Selectors.Code).First().Text())
	}
	if h.config.Selectors.Image != "" {
		if src, ok := sel.Find(h.config.Selectors.Image).First().Attr("src"); ok {
			if img, imgErr := base.Parse(strings.TrimSpace(src)); imgErr == nil {
				item.ImageURL = img.String()
			}
		}
	}

	item.SourceID = item.ResolveSourceID()
	return item, true
}

// ParsePrice extracts a decimal price from display text like "£1,299.99" or
// "Now 0.79". Returns 0 when no number is present.
func ParsePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return 0
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}
