// Package engine orchestrates extraction runs: section discovery, item
// harvesting, marketplace matching, and durable report batches, with the
// run position persisted so an interrupted run resumes where it stopped.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/harvest"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/resume"
	"github.com/harlowes/magpie/internal/service"
)

// errItemCap signals that the configured item cap was reached. It ends a
// supplier's run cleanly, not as a failure.
var errItemCap = errors.New("item cap reached")

// runState labels where a supplier run is in its processing loop, for logs.
type runState string

const (
	stateSelecting  runState = "selecting_section"
	stateHarvesting runState = "harvesting"
	stateMatching   runState = "matching"
	stateFlushing   runState = "flushing"
	stateDone       runState = "done"
)

// Config holds configuration options for the extraction engine.
type Config struct {
	// RunID scopes cursors and summaries. Re-running with the same ID
	// resumes; a new ID starts fresh.
	RunID string
	// FlushEvery is how many report rows accumulate before a durable flush.
	FlushEvery int
	// MaxCycles caps decision cycles per supplier in one run.
	MaxCycles int
	// MaxItems, when positive, ends a supplier's run cleanly after that
	// many items have been processed.
	MaxItems int
	// Observer, when set, is notified as each item completes.
	Observer RunObserver
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FlushEvery: 10,
		MaxCycles:  8,
	}
}

// Engine runs the full extraction pipeline for a set of suppliers.
type Engine struct {
	storage    service.Storage
	decider    SectionDecider
	matcher    ItemMatcher
	harvesters HarvesterFactory
	resume     *resume.Controller
	cfg        Config
}

// New creates an extraction engine with the given dependencies.
func New(storage service.Storage, decider SectionDecider, matcher ItemMatcher, harvesters HarvesterFactory, cfg Config) *Engine {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultConfig().FlushEvery
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultConfig().MaxCycles
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Engine{
		storage:    storage,
		decider:    decider,
		matcher:    matcher,
		harvesters: harvesters,
		resume:     resume.New(storage),
		cfg:        cfg,
	}
}

// Run processes all suppliers concurrently. Each supplier is an independent
// task: one supplier's fatal error never stops the others. The returned
// error joins per-supplier failures; a canceled context surfaces as one.
func (e *Engine) Run(ctx context.Context, suppliers []harvest.SupplierConfig) error {
	var wg sync.WaitGroup
	errs := make([]error, len(suppliers))
	for i, cfg := range suppliers {
		wg.Add(1)
		go func(i int, cfg harvest.SupplierConfig) {
			defer wg.Done()
			errs[i] = e.runSupplier(ctx, cfg)
		}(i, cfg)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// runSupplier loops decide -> harvest -> match -> flush for one supplier
// until it is exhausted, the cycle cap is reached, or the context ends.
// Supplier-fatal conditions end this run cleanly and return nil.
func (e *Engine) runSupplier(ctx context.Context, cfg harvest.SupplierConfig) error {
	supplier := cfg.Supplier()
	log := slog.With("supplier", supplier.Name, "run_id", e.cfg.RunID)

	summary := &service.RunSummary{
		StartedAt:     time.Now(),
		Supplier:      supplier.Name,
		RunID:         e.cfg.RunID,
		TierHistogram: make(map[model.DecisionTier]int),
	}
	defer func() {
		summary.FinishedAt = time.Now()
		// The summary must land even when we are stopping on a canceled
		// context.
		if err := e.storage.SaveRunSummary(context.WithoutCancel(ctx), summary); err != nil {
			log.Error("Failed to save run summary", "error", err)
		}
	}()

	history, err := e.storage.GetDiscoveryHistory(ctx, supplier.Name)
	if errors.Is(err, common.ErrNotFound) {
		history = model.NewDiscoveryHistory(supplier.Name)
	} else if err != nil {
		return fmt.Errorf("failed to load discovery history: %w", err)
	}

	harvester := e.harvesters(cfg)
	var processed int

	for cycle := 0; cycle < e.cfg.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Info("Selecting sections", "state", stateSelecting, "cycle", cycle)
		logStart := len(history.DecisionLog)
		result, decideErr := e.decider.Decide(ctx, supplier, history)
		e.persistDecisions(ctx, log, history, logStart)

		if decideErr != nil {
			if common.SupplierFatal(decideErr) {
				log.Error("Supplier run ended", "error", decideErr)
				summary.SectionFailures++
				return nil
			}
			return fmt.Errorf("section decision failed: %w", decideErr)
		}
		if len(result.ChosenSections) == 0 {
			log.Info("Supplier exhausted, nothing novel to crawl", "state", stateDone)
			return nil
		}
		summary.TierHistogram[result.Tier]++

		for _, section := range result.ChosenSections {
			err := e.processSection(ctx, log, harvester, history, summary, supplier, section, &processed)
			if err != nil {
				if errors.Is(err, errItemCap) {
					log.Info("Item cap reached", "state", stateDone, "items", processed)
					return nil
				}
				if ctx.Err() != nil {
					return err
				}
				// One section failing never ends the supplier's run.
				summary.SectionFailures++
				log.Warn("Section failed, continuing with next",
					"section", section,
					"error", err)
				continue
			}
			summary.SectionsCrawled++
		}
	}

	log.Info("Cycle cap reached", "state", stateDone, "cycles", e.cfg.MaxCycles)
	return nil
}

// processSection harvests one section and matches its items from the
// persisted cursor position, flushing report rows in small batches.
func (e *Engine) processSection(ctx context.Context, log *slog.Logger, harvester ItemHarvester, history *model.DiscoveryHistory, summary *service.RunSummary, supplier model.Supplier, sectionURL string, processed *int) error {
	log.Info("Harvesting section", "state", stateHarvesting, "section", sectionURL)
	items, err := harvester.Harvest(ctx, sectionURL)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	cursor, err := e.resume.LoadCursor(ctx, supplier.Name, sectionRunID(e.cfg.RunID, sectionURL))
	if err != nil {
		return err
	}
	remaining := e.resume.Remaining(items, cursor)
	if len(remaining) < len(items) {
		log.Info("Resuming section from cursor",
			"section", sectionURL,
			"done", cursor.LastProcessedIndex,
			"total", len(items))
	}

	// Writes after a cancel still land: the clean-stop contract is that the
	// in-flight item completes and its state is persisted before we return.
	storeCtx := context.WithoutCancel(ctx)

	pending := make([]model.ReportRow, 0, e.cfg.FlushEvery)
	flush := func(flushCtx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		batchID := uuid.NewString()
		if err := e.storage.SaveReportBatch(flushCtx, batchID, pending); err != nil {
			return fmt.Errorf("failed to flush report batch: %w", err)
		}
		if err := e.storage.SaveDiscoveryHistory(flushCtx, history); err != nil {
			return fmt.Errorf("failed to persist discovery history: %w", err)
		}
		log.Debug("Flushed report batch",
			"state", stateFlushing,
			"batch_id", batchID,
			"rows", len(pending))
		pending = pending[:0]
		return nil
	}

	for _, item := range remaining {
		// Clean stop: the in-flight item finished, flush what we have and
		// stop before starting the next one.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err := flush(storeCtx); err != nil {
				return err
			}
			return ctxErr
		}

		if err := e.processItem(ctx, log, history, summary, supplier, item, &pending); err != nil {
			if ctx.Err() != nil {
				if ferr := flush(storeCtx); ferr != nil {
					return ferr
				}
			}
			return err
		}
		if err := e.resume.Advance(storeCtx, cursor); err != nil {
			return err
		}
		if len(pending) >= e.cfg.FlushEvery {
			if err := flush(storeCtx); err != nil {
				return err
			}
		}
		*processed++
		if e.cfg.MaxItems > 0 && *processed >= e.cfg.MaxItems {
			// Leave the section unvisited so the next run picks it back up.
			if err := flush(storeCtx); err != nil {
				return err
			}
			if err := e.storage.SaveDiscoveryHistory(storeCtx, history); err != nil {
				return fmt.Errorf("failed to persist discovery history: %w", err)
			}
			return errItemCap
		}
	}

	if err := flush(storeCtx); err != nil {
		return err
	}
	history.RecordHarvest(sectionURL, len(items), time.Now())
	if err := e.storage.SaveDiscoveryHistory(storeCtx, history); err != nil {
		return fmt.Errorf("failed to persist discovery history: %w", err)
	}
	return nil
}

// processItem matches one item and upserts its linking record. A match
// failure on one item is recorded as unmatched; only storage errors
// propagate. Cancellation does not interrupt the item: its match runs to
// completion and its writes land before the caller's loop observes the stop.
func (e *Engine) processItem(ctx context.Context, log *slog.Logger, history *model.DiscoveryHistory, summary *service.RunSummary, supplier model.Supplier, item model.SourceItem, pending *[]model.ReportRow) error {
	item.SourceID = item.ResolveSourceID()
	storeCtx := context.WithoutCancel(ctx)

	linked, err := e.storage.HasLinkingRecord(storeCtx, item.SourceID)
	if err != nil {
		return fmt.Errorf("failed to check linking record: %w", err)
	}
	if linked || history.ProcessedItems[item.SourceID] {
		summary.ItemsSkipped++
		return nil
	}

	log.Debug("Matching item", "state", stateMatching, "source_id", item.SourceID)
	// A stop signal arriving mid-match lets the in-flight item finish; the
	// matcher's own per-layer timeouts still bound the work.
	match, err := e.matcher.Match(context.WithoutCancel(ctx), item)
	if err != nil {
		// A failed match is recorded as a no-match, not dropped.
		log.Warn("Item match failed, recording as unmatched",
			"error", &common.ItemError{SourceID: item.SourceID, Err: err})
		match = model.MarketplaceMatch{Method: model.MethodNone}
	}

	if match.Matched() {
		record := &model.LinkingRecord{
			SourceID:      item.SourceID,
			MarketplaceID: match.MarketplaceID,
			Method:        match.Method,
			Supplier:      supplier.Name,
			Confidence:    match.Confidence,
		}
		if err := e.storage.SaveLinkingRecord(storeCtx, record); err != nil {
			return fmt.Errorf("failed to save linking record: %w", err)
		}
		summary.Matched++
	} else {
		summary.Unmatched++
	}

	if e.cfg.Observer != nil {
		e.cfg.Observer.ItemProcessed(supplier.Name, match.Matched())
	}

	history.MarkProcessed(item.SourceID)
	*pending = append(*pending, model.ReportRow{
		RecordedAt:    time.Now(),
		SourceID:      item.SourceID,
		Title:         item.Title,
		MarketplaceID: match.MarketplaceID,
		Method:        match.Method,
		Supplier:      supplier.Name,
		SourcePrice:   item.Price,
		ListingPrice:  match.ListingPrice,
		Confidence:    match.Confidence,
	})
	return nil
}

// persistDecisions appends decision log entries recorded since from and
// saves the history. Persistence trouble here is logged, not fatal: the
// decision outcome itself still drives the run.
func (e *Engine) persistDecisions(ctx context.Context, log *slog.Logger, history *model.DiscoveryHistory, from int) {
	for _, entry := range history.DecisionLog[from:] {
		if err := e.storage.AppendDecisionLog(ctx, history.Supplier, entry); err != nil {
			log.Warn("Failed to append decision log entry", "tier", entry.Tier, "error", err)
		}
	}
	if err := e.storage.SaveDiscoveryHistory(ctx, history); err != nil {
		log.Warn("Failed to persist discovery history", "error", err)
	}
}

// sectionRunID scopes the run cursor to one section, so each section's item
// list advances independently within the same run.
func sectionRunID(runID, sectionURL string) string {
	return runID + "#" + model.NormalizeSourceURL(sectionURL)
}
