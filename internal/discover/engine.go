// Package discover implements the category decision engine that chooses
// which catalog sections to crawl next for a supplier.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/fetch"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/suggest"
)

// Config holds configuration options for the decision engine.
type Config struct {
	// StaleAfter is how long a visited section stays excluded from
	// re-suggestion before it is considered stale and eligible again.
	StaleAfter time.Duration
	// SuggestTimeout bounds each individual suggestion call.
	SuggestTimeout time.Duration
	// MaxSections caps how many sections one decision returns.
	MaxSections int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StaleAfter:     7 * 24 * time.Hour,
		SuggestTimeout: 45 * time.Second,
		MaxSections:    5,
	}
}

// Engine chooses catalog sections using an ordered ladder of tiers. Tiers
// are tried in strict order and the first that yields novel sections wins;
// the final structural tier needs no AI service at all, so a usable answer
// is always produced while the entry page is reachable.
type Engine struct {
	cfg   Config
	tiers []tier
}

// New creates a decision engine. The suggestion client may be nil, in which
// case only the structural tier is available.
func New(client suggest.Client, fetcher fetch.Fetcher, cfg Config) *Engine {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	if cfg.SuggestTimeout <= 0 {
		cfg.SuggestTimeout = DefaultConfig().SuggestTimeout
	}
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = DefaultConfig().MaxSections
	}

	var tiers []tier
	if client != nil {
		tiers = append(tiers,
			&aiTier{name: model.TierPrecision, client: client, temperature: 0.2, prompt: buildPrecisionPrompt, timeout: cfg.SuggestTimeout},
			&aiTier{name: model.TierComprehensive, client: client, temperature: 0.7, prompt: buildComprehensivePrompt, timeout: cfg.SuggestTimeout},
			&aiTier{name: model.TierMinimal, client: client, temperature: 1.0, prompt: buildMinimalPrompt, timeout: cfg.SuggestTimeout},
		)
	}
	tiers = append(tiers, &structuralTier{fetcher: fetcher})

	return &Engine{cfg: cfg, tiers: tiers}
}

// decisionContext carries everything one tier attempt needs. History is
// passed in explicitly so tests can run against controlled state.
type decisionContext struct {
	now         time.Time
	history     *model.DiscoveryHistory
	supplier    model.Supplier
	staleAfter  time.Duration
	maxSections int
}

// excluded reports whether a section should not be re-suggested: it was
// visited recently enough that its performance data is still fresh.
func (dc *decisionContext) excluded(sectionURL string) bool {
	return dc.history.FreshlyVisited(sectionURL, dc.now, dc.staleAfter)
}

// Decide produces the next sections to crawl. Every tier attempt, successful
// or not, is appended to the history's decision log. A nil error with no
// chosen sections means the supplier is exhausted: the structural tier ran
// against a reachable entry page and found nothing novel.
func (e *Engine) Decide(ctx context.Context, supplier model.Supplier, history *model.DiscoveryHistory) (*model.DecisionResult, error) {
	dc := &decisionContext{
		supplier:    supplier,
		history:     history,
		now:         time.Now(),
		staleAfter:  e.cfg.StaleAfter,
		maxSections: e.cfg.MaxSections,
	}

	var entryErr error
	for _, t := range e.tiers {
		result, err := t.attempt(ctx, dc)

		entry := model.DecisionEntry{
			Timestamp: time.Now(),
			Tier:      t.tierName(),
		}
		if err != nil {
			entry.Rationale = fmt.Sprintf("tier failed: %v", err)
		} else {
			entry.Rationale = result.Rationale
			entry.ChosenSections = result.ChosenSections
			entry.RejectedSections = result.RejectedSections
		}
		history.RecordDecision(entry)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Any service failure is recoverable: fall to the next tier.
			// Only the structural tier failing to reach the entry page
			// is fatal for this supplier.
			if t.tierName() == model.TierStructural {
				entryErr = err
			}
			slog.Warn("Decision tier failed",
				"supplier", supplier.Name,
				"tier", t.tierName(),
				"error", err)
			continue
		}

		if len(result.ChosenSections) == 0 && t.tierName() != model.TierStructural {
			slog.Debug("Decision tier returned no novel sections",
				"supplier", supplier.Name,
				"tier", t.tierName())
			continue
		}

		slog.Info("Decision made",
			"supplier", supplier.Name,
			"tier", t.tierName(),
			"chosen", len(result.ChosenSections),
			"rejected", len(result.RejectedSections))
		return result, nil
	}

	if entryErr != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEntryUnreachable, entryErr)
	}
	return nil, common.ErrTiersExhausted
}
