package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/marketplace"
	"github.com/harlowes/magpie/internal/model"
)

// mockMarketplace scripts lookup behavior per test.
type mockMarketplace struct {
	byCode      map[string]*marketplace.Listing
	searches    map[string][]marketplace.Listing
	codeErr     error
	searchErr   error
	searchDelay time.Duration
	codeCalls   int
	searchCalls int
}

func (m *mockMarketplace) LookupByCode(_ context.Context, code string) (*marketplace.Listing, error) {
	m.codeCalls++
	if m.codeErr != nil {
		return nil, m.codeErr
	}
	if listing, ok := m.byCode[code]; ok {
		return listing, nil
	}
	return nil, common.ErrNotFound
}

func (m *mockMarketplace) SearchByTitle(ctx context.Context, query string) ([]marketplace.Listing, error) {
	m.searchCalls++
	if m.searchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.searchDelay):
		}
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	for key, listings := range m.searches {
		if key == query || key == "*" {
			return listings, nil
		}
	}
	return nil, nil
}

func TestMatchExactCode(t *testing.T) {
	client := &mockMarketplace{
		byCode: map[string]*marketplace.Listing{
			"5055319510417": {ID: "B00ABC123", Title: "Stove Polish 200ml", Price: 6.49},
		},
	}
	matcher := New(client, DefaultConfig())

	item := model.SourceItem{
		SourceID:    "5055319510417",
		ProductCode: "5055319510417",
		Title:       "Stove Polish 200ml",
		Price:       0.79,
	}

	result, err := matcher.Match(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, model.MethodCodeExact, result.Method)
	assert.Equal(t, "B00ABC123", result.MarketplaceID)
	assert.InDelta(t, 0.95, result.Confidence, 0.001)
	assert.Equal(t, 0, client.searchCalls, "confident code match must not trigger search layers")
}

func TestMatchFallsThroughToTitleSimilarity(t *testing.T) {
	client := &mockMarketplace{
		searches: map[string][]marketplace.Listing{
			"*": {
				{ID: "B00WRONG", Title: "Completely Different Gadget", Price: 3.0},
				{ID: "B00RIGHT", Title: "Stove Polish Black", Price: 5.99},
			},
		},
	}
	matcher := New(client, DefaultConfig())

	item := model.SourceItem{
		SourceID: "shop.example.com/p/stove-polish",
		Title:    "NEW Stove Polish Black 200ml SALE",
		Price:    0.79,
	}

	result, err := matcher.Match(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, model.MethodTitleSimilarity, result.Method)
	assert.Equal(t, "B00RIGHT", result.MarketplaceID)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
	assert.Equal(t, 0, client.codeCalls, "no product code means no code lookup")
}

func TestMatchNoneIsNormalOutcome(t *testing.T) {
	client := &mockMarketplace{}
	matcher := New(client, DefaultConfig())

	item := model.SourceItem{
		SourceID: "shop.example.com/p/mystery",
		Title:    "Mystery Item",
	}

	result, err := matcher.Match(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, model.MethodNone, result.Method)
	assert.Zero(t, result.Confidence)
	assert.False(t, result.Matched())
}

func TestMatchLayerTimeoutFallsThrough(t *testing.T) {
	client := &mockMarketplace{
		searchDelay: 200 * time.Millisecond,
	}
	cfg := DefaultConfig()
	cfg.LayerTimeout = 10 * time.Millisecond
	matcher := New(client, cfg)

	item := model.SourceItem{
		SourceID: "shop.example.com/p/slow",
		Title:    "Karcher K4 Pressure Washer",
	}

	result, err := matcher.Match(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, model.MethodNone, result.Method)
}

func TestMatchBrandModelLayer(t *testing.T) {
	client := &mockMarketplace{
		searches: map[string][]marketplace.Listing{
			"karcher k4": {
				{ID: "B00KARCH", Title: "Karcher K4 Pressure Washer", Price: 149.0},
			},
		},
	}
	matcher := New(client, DefaultConfig())

	item := model.SourceItem{
		SourceID: "shop.example.com/p/karcher",
		Title:    "Karcher K4 Pressure Washer",
	}

	result, err := matcher.Match(context.Background(), item)
	require.NoError(t, err)
	// Title layer found nothing for the full query, brand/model succeeded.
	assert.Equal(t, model.MethodBrandModel, result.Method)
	assert.Equal(t, "B00KARCH", result.MarketplaceID)
}

func TestMatchCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matcher := New(&mockMarketplace{}, DefaultConfig())
	_, err := matcher.Match(ctx, model.SourceItem{SourceID: "x", Title: "y"})
	assert.Error(t, err)
}
