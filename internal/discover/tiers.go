package discover

import (
	"context"
	"fmt"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/suggest"
)

// tier is one strategy level in the fallback ladder.
type tier interface {
	tierName() model.DecisionTier
	attempt(ctx context.Context, dc *decisionContext) (*model.DecisionResult, error)
}

// aiTier asks the suggestion service for sections using a tier-specific
// prompt and sampling temperature.
type aiTier struct {
	client      suggest.Client
	prompt      func(dc *decisionContext) string
	name        model.DecisionTier
	temperature float64
	timeout     time.Duration
}

func (t *aiTier) tierName() model.DecisionTier {
	return t.name
}

func (t *aiTier) attempt(ctx context.Context, dc *decisionContext) (*model.DecisionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	text, err := t.client.Suggest(callCtx, t.prompt(dc), t.temperature)
	if err != nil {
		return nil, err
	}

	candidates := suggest.ParseSectionURLs(text)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no section URLs in response", common.ErrMalformedResponse)
	}

	return filterCandidates(dc, t.name, candidates,
		fmt.Sprintf("suggestion service returned %d candidates at temperature %.1f", len(candidates), t.temperature)), nil
}

// filterCandidates splits candidates into chosen and rejected: anything
// already covered by fresh history is rejected, and the chosen list is
// capped at the configured maximum.
func filterCandidates(dc *decisionContext, tierName model.DecisionTier, candidates []string, rationale string) *model.DecisionResult {
	result := &model.DecisionResult{
		Tier:      tierName,
		Rationale: rationale,
	}

	for _, candidate := range candidates {
		if dc.excluded(candidate) {
			result.RejectedSections = append(result.RejectedSections, candidate)
			continue
		}
		if len(result.ChosenSections) >= dc.maxSections {
			result.RejectedSections = append(result.RejectedSections, candidate)
			continue
		}
		result.ChosenSections = append(result.ChosenSections, candidate)
	}

	return result
}
