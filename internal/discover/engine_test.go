package discover

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/fetch"
	"github.com/harlowes/magpie/internal/model"
)

// mockSuggest returns scripted responses in sequence.
type mockSuggest struct {
	responses []string
	errs      []error
	calls     int
}

func (m *mockSuggest) Suggest(_ context.Context, _ string, _ float64) (string, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

// stubFetcher serves canned pages by URL.
type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok {
		return &fetch.Page{URL: url, StatusCode: 404}, fmt.Errorf("%w: status 404", common.ErrFetchFailed)
	}
	return &fetch.Page{URL: url, HTML: html, StatusCode: 200}, nil
}

const entryPageHTML = `<html><body>
<nav>
  <a href="/category/clearance">Clearance</a>
  <a href="/category/garden">Garden</a>
  <a href="/login">Login</a>
  <a href="https://othersite.example.com/deals">External</a>
</nav>
</body></html>`

var testSupplier = model.Supplier{Name: "example", EntryURL: "https://shop.example.com/"}

func TestDecidePrecisionTierWins(t *testing.T) {
	client := &mockSuggest{
		responses: []string{"https://shop.example.com/clearance\nhttps://shop.example.com/sale"},
	}
	engine := New(client, &stubFetcher{}, DefaultConfig())
	history := model.NewDiscoveryHistory("example")

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, model.TierPrecision, result.Tier)
	assert.Equal(t, []string{"https://shop.example.com/clearance", "https://shop.example.com/sale"}, result.ChosenSections)
	assert.Equal(t, 1, client.calls)
	require.Len(t, history.DecisionLog, 1)
	assert.Equal(t, model.TierPrecision, history.DecisionLog[0].Tier)
}

func TestDecideExcludesFreshlyVisitedSections(t *testing.T) {
	client := &mockSuggest{
		responses: []string{"https://shop.example.com/clearance\nhttps://shop.example.com/sale"},
	}
	engine := New(client, &stubFetcher{}, DefaultConfig())

	history := model.NewDiscoveryHistory("example")
	history.RecordHarvest("https://shop.example.com/clearance", 10, time.Now())

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com/sale"}, result.ChosenSections)
	assert.Equal(t, []string{"https://shop.example.com/clearance"}, result.RejectedSections)
}

func TestDecideStaleSectionsBecomeEligibleAgain(t *testing.T) {
	client := &mockSuggest{
		responses: []string{"https://shop.example.com/clearance"},
	}
	cfg := DefaultConfig()
	cfg.StaleAfter = time.Hour
	engine := New(client, &stubFetcher{}, cfg)

	history := model.NewDiscoveryHistory("example")
	history.RecordHarvest("https://shop.example.com/clearance", 10, time.Now().Add(-2*time.Hour))

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com/clearance"}, result.ChosenSections)
}

func TestDecideFallsThroughToStructuralTier(t *testing.T) {
	// Tiers 1 and 2 return unparseable text, tier 3 errors: the structural
	// scrape must still produce a non-empty list from the entry page.
	client := &mockSuggest{
		responses: []string{"I cannot help with that.", "Sorry, no browsing."},
		errs:      []error{nil, nil, errors.New("quota exceeded")},
	}
	fetcher := &stubFetcher{pages: map[string]string{"https://shop.example.com/": entryPageHTML}}
	engine := New(client, fetcher, DefaultConfig())
	history := model.NewDiscoveryHistory("example")

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, model.TierStructural, result.Tier)
	assert.Equal(t, []string{
		"https://shop.example.com/category/clearance",
		"https://shop.example.com/category/garden",
	}, result.ChosenSections)
	assert.Equal(t, 3, client.calls)

	// Every attempt lands in the decision log, failures included.
	require.Len(t, history.DecisionLog, 4)
	assert.Equal(t, model.TierPrecision, history.DecisionLog[0].Tier)
	assert.Equal(t, model.TierComprehensive, history.DecisionLog[1].Tier)
	assert.Equal(t, model.TierMinimal, history.DecisionLog[2].Tier)
	assert.Equal(t, model.TierStructural, history.DecisionLog[3].Tier)
	assert.Contains(t, history.DecisionLog[2].Rationale, "tier failed")
}

func TestDecideUnreachableEntryIsFatal(t *testing.T) {
	client := &mockSuggest{
		errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}
	fetcher := &stubFetcher{errs: map[string]error{
		"https://shop.example.com/": fmt.Errorf("%w: connection refused", common.ErrFetchFailed),
	}}
	engine := New(client, fetcher, DefaultConfig())
	history := model.NewDiscoveryHistory("example")

	_, err := engine.Decide(context.Background(), testSupplier, history)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEntryUnreachable))
	assert.True(t, common.SupplierFatal(err))
}

func TestDecideExhaustedEntryPageReturnsEmpty(t *testing.T) {
	client := &mockSuggest{
		responses: []string{"no urls here", "still none", "nope"},
	}
	fetcher := &stubFetcher{pages: map[string]string{"https://shop.example.com/": entryPageHTML}}
	engine := New(client, fetcher, DefaultConfig())

	history := model.NewDiscoveryHistory("example")
	now := time.Now()
	history.RecordHarvest("https://shop.example.com/category/clearance", 8, now)
	history.RecordHarvest("https://shop.example.com/category/garden", 3, now)

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, model.TierStructural, result.Tier)
	assert.Empty(t, result.ChosenSections)
}

func TestDecideWithoutSuggestClient(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{"https://shop.example.com/": entryPageHTML}}
	engine := New(nil, fetcher, DefaultConfig())
	history := model.NewDiscoveryHistory("example")

	result, err := engine.Decide(context.Background(), testSupplier, history)
	require.NoError(t, err)
	assert.Equal(t, model.TierStructural, result.Tier)
	assert.NotEmpty(t, result.ChosenSections)
}

func TestDecideCapsSectionCount(t *testing.T) {
	client := &mockSuggest{
		responses: []string{
			"https://shop.example.com/a\nhttps://shop.example.com/b\nhttps://shop.example.com/c\nhttps://shop.example.com/d",
		},
	}
	cfg := DefaultConfig()
	cfg.MaxSections = 2
	engine := New(client, &stubFetcher{}, cfg)

	result, err := engine.Decide(context.Background(), testSupplier, model.NewDiscoveryHistory("example"))
	require.NoError(t, err)
	assert.Len(t, result.ChosenSections, 2)
	assert.Len(t, result.RejectedSections, 2)
}
