// Package resume tracks processing position so interrupted runs continue
// without redoing or losing work.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
)

// Controller answers "have we done this already" at two granularities: the
// global linking store for cross-run dedup, and the run cursor for position
// within the current batch.
type Controller struct {
	storage service.Storage
}

// New creates a resume controller.
func New(storage service.Storage) *Controller {
	return &Controller{storage: storage}
}

// IsAlreadyLinked reports whether a source identifier has a linking record,
// in which case the matching engine is skipped entirely.
func (c *Controller) IsAlreadyLinked(ctx context.Context, sourceID string) (bool, error) {
	return c.storage.HasLinkingRecord(ctx, sourceID)
}

// LoadCursor returns the persisted cursor for a run, or a fresh zero cursor
// when none exists yet.
func (c *Controller) LoadCursor(ctx context.Context, supplier, runID string) (*model.RunCursor, error) {
	cursor, err := c.storage.GetRunCursor(ctx, supplier, runID)
	if errors.Is(err, common.ErrNotFound) {
		return &model.RunCursor{Supplier: supplier, RunID: runID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	return cursor, nil
}

// Remaining slices the item list from the cursor position. The cursor
// indexes the raw harvested list, so a cursor beyond the list (the section
// shrank since the last run) resets to the start instead of erroring.
// Already-linked items are the caller's per-item check, not filtered here,
// since the persisted index must stay aligned with the harvested order.
func (c *Controller) Remaining(items []model.SourceItem, cursor *model.RunCursor) []model.SourceItem {
	if cursor.Clamp(len(items)) {
		slog.Warn("Cursor beyond item list, resetting to start",
			"supplier", cursor.Supplier,
			"run_id", cursor.RunID,
			"list_len", len(items))
	}
	return items[cursor.LastProcessedIndex:]
}

// Advance moves the cursor past one fully processed item and persists it
// immediately, so a crash loses at most the in-flight item.
func (c *Controller) Advance(ctx context.Context, cursor *model.RunCursor) error {
	cursor.LastProcessedIndex++
	cursor.UpdatedAt = time.Now()
	if err := c.storage.SaveRunCursor(ctx, cursor); err != nil {
		return fmt.Errorf("failed to persist cursor: %w", err)
	}
	return nil
}
