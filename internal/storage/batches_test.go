package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
)

func TestSaveReportBatch(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	since := time.Now().Add(-time.Minute)
	rows := []model.ReportRow{
		{SourceID: "5055319510417", Title: "Stove Polish 200ml", SourcePrice: 0.79,
			MarketplaceID: "B00ABC123", ListingPrice: 6.49, Method: model.MethodCodeExact,
			Confidence: 0.95, Supplier: "example"},
		{SourceID: "item-2", Title: "Garden Trowel", SourcePrice: 1.25,
			Method: model.MethodNone, Supplier: "example"},
	}

	require.NoError(t, store.SaveReportBatch(ctx, "batch-1", rows))

	got, err := store.GetReportRows(ctx, "example", since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "5055319510417", got[0].SourceID)
	assert.Equal(t, model.MethodNone, got[1].Method)
}

func TestSaveReportBatchEmptyIsNoop(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveReportBatch(context.Background(), "batch-empty", nil))
}

func TestGetReportRowsWithoutSupplierReturnsAll(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rows := []model.ReportRow{
		{SourceID: "alpha-1", Title: "Wool Duster", SourcePrice: 0.99,
			Method: model.MethodTitleSimilarity, Confidence: 0.81, Supplier: "alpha"},
		{SourceID: "beta-1", Title: "Pan Scourers x10", SourcePrice: 0.49,
			Method: model.MethodNone, Supplier: "beta"},
	}
	require.NoError(t, store.SaveReportBatch(ctx, "batch-mixed", rows))

	got, err := store.GetReportRows(ctx, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	onlyAlpha, err := store.GetReportRows(ctx, "alpha", time.Time{})
	require.NoError(t, err)
	require.Len(t, onlyAlpha, 1)
	assert.Equal(t, "alpha-1", onlyAlpha[0].SourceID)
}

func TestRunSummaryRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	started := time.Now().Add(-time.Hour).Truncate(time.Second)
	summary := &service.RunSummary{
		RunID:           "run-1",
		Supplier:        "example",
		StartedAt:       started,
		FinishedAt:      started.Add(50 * time.Minute),
		Matched:         42,
		Unmatched:       7,
		ItemsSkipped:    12,
		SectionsCrawled: 5,
		SectionFailures: 1,
		TierHistogram: map[model.DecisionTier]int{
			model.TierPrecision:  3,
			model.TierStructural: 2,
		},
	}

	require.NoError(t, store.SaveRunSummary(ctx, summary))

	// A later save for the same run updates in place.
	summary.Matched = 43
	require.NoError(t, store.SaveRunSummary(ctx, summary))

	got, err := store.GetLatestRunSummary(ctx, "example")
	require.NoError(t, err)
	assert.Equal(t, 43, got.Matched)
	assert.Equal(t, 3, got.TierHistogram[model.TierPrecision])
	assert.Equal(t, 2, got.TierHistogram[model.TierStructural])
}

func TestRunSummariesKeyedPerSupplier(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	started := time.Now().Add(-time.Hour).Truncate(time.Second)
	for supplier, matched := range map[string]int{"alpha": 5, "beta": 9} {
		require.NoError(t, store.SaveRunSummary(ctx, &service.RunSummary{
			RunID:      "run-1",
			Supplier:   supplier,
			StartedAt:  started,
			FinishedAt: started.Add(time.Minute),
			Matched:    matched,
		}))
	}

	alpha, err := store.GetLatestRunSummary(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 5, alpha.Matched)

	beta, err := store.GetLatestRunSummary(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, "run-1", beta.RunID)
	assert.Equal(t, 9, beta.Matched)
}
