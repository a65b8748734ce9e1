package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/harvest"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
	"github.com/harlowes/magpie/internal/storage"
)

// deciderStep is one scripted Decide outcome.
type deciderStep struct {
	result *model.DecisionResult
	err    error
}

// scriptedDecider plays back a fixed sequence of decisions, then reports
// the supplier as exhausted. Every call records a decision log entry the
// way the real engine does.
type scriptedDecider struct {
	mu    sync.Mutex
	steps []deciderStep
	calls int
}

func (d *scriptedDecider) Decide(_ context.Context, _ model.Supplier, history *model.DiscoveryHistory) (*model.DecisionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.steps) == 0 {
		history.RecordDecision(model.DecisionEntry{
			Timestamp: time.Now(),
			Tier:      model.TierStructural,
			Rationale: "nothing novel",
		})
		return &model.DecisionResult{Tier: model.TierStructural}, nil
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	if step.err != nil {
		history.RecordDecision(model.DecisionEntry{
			Timestamp: time.Now(),
			Tier:      model.TierStructural,
			Rationale: step.err.Error(),
		})
		return nil, step.err
	}
	history.RecordDecision(model.DecisionEntry{
		Timestamp:      time.Now(),
		Tier:           step.result.Tier,
		Rationale:      step.result.Rationale,
		ChosenSections: step.result.ChosenSections,
	})
	return step.result, nil
}

// mapHarvester serves canned items per section URL.
type mapHarvester struct {
	items map[string][]model.SourceItem
	errs  map[string]error
}

func (h *mapHarvester) Harvest(_ context.Context, sectionURL string) ([]model.SourceItem, error) {
	if err := h.errs[sectionURL]; err != nil {
		return nil, err
	}
	return h.items[sectionURL], nil
}

// mockMatcher matches via fn and counts calls per source identifier. The
// optional after hook runs once a match returns, letting tests cancel the
// run mid-section.
type mockMatcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(item model.SourceItem) (model.MarketplaceMatch, error)
	after func(item model.SourceItem)
}

func (m *mockMatcher) Match(ctx context.Context, item model.SourceItem) (model.MarketplaceMatch, error) {
	if err := ctx.Err(); err != nil {
		return model.MarketplaceMatch{}, err
	}
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[item.SourceID]++
	m.mu.Unlock()

	match, err := m.fn(item)
	if m.after != nil {
		m.after(item)
	}
	return match, err
}

func (m *mockMatcher) callCount(sourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[sourceID]
}

func matchAllByCode(item model.SourceItem) (model.MarketplaceMatch, error) {
	return model.MarketplaceMatch{
		MatchedAt:     time.Now(),
		MarketplaceID: "B-" + item.ProductCode,
		Method:        model.MethodCodeExact,
		ListingTitle:  item.Title,
		Confidence:    0.95,
		ListingPrice:  item.Price * 2,
	}, nil
}

func sectionItems(section string, n int) []model.SourceItem {
	items := make([]model.SourceItem, n)
	for i := range items {
		items[i] = model.SourceItem{
			Title:       fmt.Sprintf("Widget %s %d", section, i),
			ProductCode: fmt.Sprintf("%s-%03d", section, i),
			SourceURL:   fmt.Sprintf("https://shop.example.com/%s/p/%d", section, i),
			Supplier:    "example",
			Price:       9.99,
			HarvestedAt: time.Now(),
		}
	}
	return items
}

func supplierConfig() harvest.SupplierConfig {
	return harvest.SupplierConfig{
		Name:     "example",
		EntryURL: "https://shop.example.com",
		Currency: "GBP",
	}
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(store service.Storage, decider SectionDecider, matcher ItemMatcher, harvester ItemHarvester, cfg Config) *Engine {
	if cfg.RunID == "" {
		cfg.RunID = "run-test"
	}
	factory := func(_ harvest.SupplierConfig) ItemHarvester { return harvester }
	return New(store, decider, matcher, factory, cfg)
}

func TestRunMatchesAndPersists(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	items := sectionItems("clearance", 3)
	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			Rationale:      "clearance section looks promising",
			ChosenSections: []string{"https://shop.example.com/clearance"},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		"https://shop.example.com/clearance": items,
	}}
	matcher := &mockMatcher{fn: func(item model.SourceItem) (model.MarketplaceMatch, error) {
		if item.ProductCode == "clearance-002" {
			return model.MarketplaceMatch{Method: model.MethodNone}, nil
		}
		return matchAllByCode(item)
	}}

	eng := newTestEngine(store, decider, matcher, harvester, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	// Two matched items got linking records, the unmatched one did not.
	for _, code := range []string{"clearance-000", "clearance-001"} {
		record, err := store.GetLinkingRecord(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, model.MethodCodeExact, record.Method)
		assert.Equal(t, "example", record.Supplier)
	}
	_, err := store.GetLinkingRecord(ctx, "clearance-002")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Every processed item produced a report row, matched or not.
	rows, err := store.GetReportRows(ctx, "example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	summary, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.SectionsCrawled)
	assert.Zero(t, summary.SectionFailures)
	assert.Equal(t, 1, summary.TierHistogram[model.TierPrecision])

	// The section is recorded as visited with its yield, and the decision
	// log holds both decide calls.
	history, err := store.GetDiscoveryHistory(ctx, "example")
	require.NoError(t, err)
	assert.True(t, history.VisitedSections["https://shop.example.com/clearance"])
	assert.Equal(t, 3, history.SectionPerformance["https://shop.example.com/clearance"].ItemsFound)
	assert.Len(t, history.DecisionLog, 2)
}

func TestRunSectionFailureIsolation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier: model.TierComprehensive,
			ChosenSections: []string{
				"https://shop.example.com/broken",
				"https://shop.example.com/toys",
			},
		},
	}}}
	harvester := &mapHarvester{
		items: map[string][]model.SourceItem{
			"https://shop.example.com/toys": sectionItems("toys", 2),
		},
		errs: map[string]error{
			"https://shop.example.com/broken": fmt.Errorf("%w: status 503", common.ErrFetchFailed),
		},
	}
	matcher := &mockMatcher{fn: matchAllByCode}

	eng := newTestEngine(store, decider, matcher, harvester, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	summary, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SectionFailures)
	assert.Equal(t, 1, summary.SectionsCrawled)
	assert.Equal(t, 2, summary.Matched)
}

func TestRunSupplierFatalEndsCleanly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	decider := &scriptedDecider{steps: []deciderStep{{
		err: fmt.Errorf("entry fetch: %w", common.ErrEntryUnreachable),
	}}}
	matcher := &mockMatcher{fn: matchAllByCode}

	eng := newTestEngine(store, decider, matcher, &mapHarvester{}, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	// The summary still lands so the failure is visible afterwards.
	summary, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SectionFailures)
	assert.Zero(t, summary.SectionsCrawled)
}

func TestRunSkipsAlreadyLinkedItems(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	items := sectionItems("garden", 3)
	require.NoError(t, store.SaveLinkingRecord(ctx, &model.LinkingRecord{
		SourceID:      "garden-001",
		MarketplaceID: "B-prior",
		Method:        model.MethodTitleSimilarity,
		Supplier:      "example",
		Confidence:    0.8,
	}))

	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{"https://shop.example.com/garden"},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		"https://shop.example.com/garden": items,
	}}
	matcher := &mockMatcher{fn: matchAllByCode}

	eng := newTestEngine(store, decider, matcher, harvester, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	assert.Zero(t, matcher.callCount("garden-001"), "linked item never reaches the matcher")
	assert.Equal(t, 1, matcher.callCount("garden-000"))
	assert.Equal(t, 1, matcher.callCount("garden-002"))

	summary, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsSkipped)
	assert.Equal(t, 2, summary.Matched)

	// The prior record survives untouched.
	record, err := store.GetLinkingRecord(ctx, "garden-001")
	require.NoError(t, err)
	assert.Equal(t, "B-prior", record.MarketplaceID)
}

func TestRunItemMatchFailureRecordsUnmatched(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{"https://shop.example.com/audio"},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		"https://shop.example.com/audio": sectionItems("audio", 3),
	}}
	matcher := &mockMatcher{fn: func(item model.SourceItem) (model.MarketplaceMatch, error) {
		if item.ProductCode == "audio-001" {
			return model.MarketplaceMatch{}, fmt.Errorf("lookup: %w", common.ErrMalformedResponse)
		}
		return matchAllByCode(item)
	}}

	eng := newTestEngine(store, decider, matcher, harvester, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	summary, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched, "failed match recorded as no-match")
	assert.Equal(t, 1, summary.SectionsCrawled, "one item failing does not fail the section")

	rows, err := store.GetReportRows(ctx, "example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 3, "failed item still gets a report row")
	for _, row := range rows {
		if row.SourceID == "audio-001" {
			assert.Equal(t, model.MethodNone, row.Method)
		}
	}
}

func TestRunStopsAtItemCap(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	section := "https://shop.example.com/clearance"
	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{section},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		section: sectionItems("clearance", 10),
	}}
	matcher := &mockMatcher{fn: matchAllByCode}

	eng := newTestEngine(store, decider, matcher, harvester, Config{MaxItems: 4})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	rows, err := store.GetReportRows(ctx, "example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	// The section stays unvisited so a later run resumes it.
	history, err := store.GetDiscoveryHistory(ctx, "example")
	require.NoError(t, err)
	assert.False(t, history.VisitedSections[section])
}

func TestRunCleanStopFlushesAndResumes(t *testing.T) {
	store := newTestStorage(t)
	section := "https://shop.example.com/clearance"
	items := sectionItems("clearance", 6)

	makeDecider := func() *scriptedDecider {
		return &scriptedDecider{steps: []deciderStep{{
			result: &model.DecisionResult{
				Tier:           model.TierPrecision,
				ChosenSections: []string{section},
			},
		}}}
	}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{section: items}}

	// First run: cancel after the second item's match completes. The
	// in-flight item still finishes and its row is flushed.
	ctx, cancel := context.WithCancel(context.Background())
	matcher := &mockMatcher{fn: matchAllByCode}
	matcher.after = func(item model.SourceItem) {
		if item.ProductCode == "clearance-001" {
			cancel()
		}
	}

	eng := newTestEngine(store, makeDecider(), matcher, harvester, Config{RunID: "run-stop"})
	err := eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()})
	require.ErrorIs(t, err, context.Canceled)

	rows, err := store.GetReportRows(context.Background(), "example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "both completed items flushed on stop")

	// Second run with the same run ID finishes the section without
	// reprocessing the first two items.
	matcher2 := &mockMatcher{fn: matchAllByCode}
	eng2 := newTestEngine(store, makeDecider(), matcher2, harvester, Config{RunID: "run-stop"})
	require.NoError(t, eng2.Run(context.Background(), []harvest.SupplierConfig{supplierConfig()}))

	rows, err = store.GetReportRows(context.Background(), "example", time.Time{})
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	assert.Zero(t, matcher2.callCount("clearance-000"))
	assert.Zero(t, matcher2.callCount("clearance-001"))
	for i := 2; i < 6; i++ {
		assert.Equal(t, 1, matcher2.callCount(fmt.Sprintf("clearance-%03d", i)))
	}
}

// stopMidMatchMatcher cancels the run while an item's match is underway and
// reports whether that match saw the cancellation.
type stopMidMatchMatcher struct {
	cancel      context.CancelFunc
	interrupted bool
}

func (m *stopMidMatchMatcher) Match(ctx context.Context, item model.SourceItem) (model.MarketplaceMatch, error) {
	m.cancel()
	if err := ctx.Err(); err != nil {
		m.interrupted = true
		return model.MarketplaceMatch{}, err
	}
	return matchAllByCode(item)
}

func TestRunCompletesInFlightMatchOnStop(t *testing.T) {
	store := newTestStorage(t)
	section := "https://shop.example.com/clearance"
	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{section},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		section: sectionItems("clearance", 3),
	}}

	// The stop arrives while the first item's match is running: that match
	// still completes and its results land before the run winds down.
	ctx, cancel := context.WithCancel(context.Background())
	matcher := &stopMidMatchMatcher{cancel: cancel}

	eng := newTestEngine(store, decider, matcher, harvester, Config{RunID: "run-midstop"})
	err := eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()})
	require.ErrorIs(t, err, context.Canceled)

	assert.False(t, matcher.interrupted, "in-flight match should run to completion")

	rows, err := store.GetReportRows(context.Background(), "example", time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MethodCodeExact, rows[0].Method)

	_, err = store.GetLinkingRecord(context.Background(), "clearance-000")
	require.NoError(t, err)
}

// batchRecorder wraps real storage to observe flush boundaries.
type batchRecorder struct {
	service.Storage
	mu      sync.Mutex
	batches []int
}

func (r *batchRecorder) SaveReportBatch(ctx context.Context, batchID string, rows []model.ReportRow) error {
	r.mu.Lock()
	r.batches = append(r.batches, len(rows))
	r.mu.Unlock()
	return r.Storage.SaveReportBatch(ctx, batchID, rows)
}

func TestRunFlushesInSmallBatches(t *testing.T) {
	recorder := &batchRecorder{Storage: newTestStorage(t)}
	ctx := context.Background()

	decider := &scriptedDecider{steps: []deciderStep{{
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{"https://shop.example.com/clearance"},
		},
	}}}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		"https://shop.example.com/clearance": sectionItems("clearance", 5),
	}}
	matcher := &mockMatcher{fn: matchAllByCode}

	eng := newTestEngine(recorder, decider, matcher, harvester, Config{FlushEvery: 2})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig()}))

	assert.Equal(t, []int{2, 2, 1}, recorder.batches)
}

func TestRunSuppliersAreIndependent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	goodSection := "https://other.example.com/deals"
	decider := &failFirstDecider{
		fatalSupplier: "example",
		result: &model.DecisionResult{
			Tier:           model.TierPrecision,
			ChosenSections: []string{goodSection},
		},
	}
	harvester := &mapHarvester{items: map[string][]model.SourceItem{
		goodSection: sectionItems("deals", 2),
	}}
	matcher := &mockMatcher{fn: matchAllByCode}

	other := harvest.SupplierConfig{Name: "other", EntryURL: "https://other.example.com"}
	eng := newTestEngine(store, decider, matcher, harvester, Config{})
	require.NoError(t, eng.Run(ctx, []harvest.SupplierConfig{supplierConfig(), other}))

	// The unreachable supplier ends cleanly while the other completes.
	summary, err := store.GetLatestRunSummary(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)
}

// failFirstDecider is supplier-fatal for one named supplier and scripted
// for every other, then exhausted.
type failFirstDecider struct {
	mu            sync.Mutex
	fatalSupplier string
	result        *model.DecisionResult
	served        bool
}

func (d *failFirstDecider) Decide(_ context.Context, supplier model.Supplier, history *model.DiscoveryHistory) (*model.DecisionResult, error) {
	history.RecordDecision(model.DecisionEntry{Timestamp: time.Now(), Tier: model.TierPrecision})
	if supplier.Name == d.fatalSupplier {
		return nil, common.ErrEntryUnreachable
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.served {
		return &model.DecisionResult{Tier: model.TierStructural}, nil
	}
	d.served = true
	return d.result, nil
}

func TestNewAppliesDefaults(t *testing.T) {
	eng := New(newTestStorage(t), &scriptedDecider{}, &mockMatcher{fn: matchAllByCode},
		func(_ harvest.SupplierConfig) ItemHarvester { return &mapHarvester{} }, Config{})
	assert.Equal(t, DefaultConfig().FlushEvery, eng.cfg.FlushEvery)
	assert.Equal(t, DefaultConfig().MaxCycles, eng.cfg.MaxCycles)
	assert.NotEmpty(t, eng.cfg.RunID)
}
