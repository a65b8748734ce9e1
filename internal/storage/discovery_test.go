package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
)

func TestDiscoveryHistoryRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	history := model.NewDiscoveryHistory("example")
	history.MarkVisited("https://shop.example.com/clearance")
	history.MarkProcessed("5055319510417")
	history.RecordHarvest("https://shop.example.com/garden", 23, time.Now().Truncate(time.Second))

	if err := store.SaveDiscoveryHistory(ctx, history); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}
	if err := store.AppendDecisionLog(ctx, "example", model.DecisionEntry{
		Tier:           model.TierPrecision,
		ChosenSections: []string{"https://shop.example.com/clearance"},
		Rationale:      "high-margin signal",
	}); err != nil {
		t.Fatalf("Failed to append decision log: %v", err)
	}

	loaded, err := store.GetDiscoveryHistory(ctx, "example")
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}

	if !loaded.VisitedSections["https://shop.example.com/clearance"] {
		t.Error("visited section lost in round trip")
	}
	if !loaded.ProcessedItems["5055319510417"] {
		t.Error("processed item lost in round trip")
	}
	stats, ok := loaded.SectionPerformance["https://shop.example.com/garden"]
	if !ok || stats.ItemsFound != 23 {
		t.Errorf("section performance lost in round trip: %+v", stats)
	}
	if len(loaded.DecisionLog) != 1 {
		t.Fatalf("expected 1 decision entry, got %d", len(loaded.DecisionLog))
	}
	if loaded.DecisionLog[0].Tier != model.TierPrecision {
		t.Errorf("decision tier = %s, want %s", loaded.DecisionLog[0].Tier, model.TierPrecision)
	}
}

func TestMissingDiscoveryHistoryReturnsEmpty(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	history, err := store.GetDiscoveryHistory(context.Background(), "brand-new")
	if err != nil {
		t.Fatalf("missing history should not error: %v", err)
	}
	if len(history.VisitedSections) != 0 || len(history.DecisionLog) != 0 {
		t.Errorf("expected empty history, got %+v", history)
	}
}

func TestCorruptDiscoveryHistoryIsQuarantined(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO discovery_history (supplier, visited_sections, processed_items, section_performance)
		VALUES ('example', 'not json at all', '[]', '{}')
	`)
	if err != nil {
		t.Fatalf("Failed to plant corrupt row: %v", err)
	}

	history, err := store.GetDiscoveryHistory(ctx, "example")
	if err != nil {
		t.Fatalf("corrupt history should read as absent, got error: %v", err)
	}
	if len(history.VisitedSections) != 0 {
		t.Errorf("expected fresh history, got %+v", history)
	}

	quarantined, err := store.GetQuarantinedRecords(ctx)
	if err != nil {
		t.Fatalf("Failed to list quarantine: %v", err)
	}
	if len(quarantined) != 1 || quarantined[0].SourceTable != "discovery_history" {
		t.Errorf("expected discovery_history entry in quarantine, got %+v", quarantined)
	}
	if !strings.Contains(quarantined[0].Reason, common.ErrCorruptRecord.Error()) {
		t.Errorf("quarantine reason should name the corruption, got %q", quarantined[0].Reason)
	}
}

func TestResetDiscoveryHistory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	history := model.NewDiscoveryHistory("example")
	history.MarkVisited("https://shop.example.com/tools")
	if err := store.SaveDiscoveryHistory(ctx, history); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}
	if err := store.AppendDecisionLog(ctx, "example", model.DecisionEntry{Tier: model.TierStructural}); err != nil {
		t.Fatalf("Failed to append log: %v", err)
	}

	if err := store.ResetDiscoveryHistory(ctx, "example"); err != nil {
		t.Fatalf("Failed to reset history: %v", err)
	}

	loaded, err := store.GetDiscoveryHistory(ctx, "example")
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(loaded.VisitedSections) != 0 || len(loaded.DecisionLog) != 0 {
		t.Errorf("history not cleared: %+v", loaded)
	}
}
