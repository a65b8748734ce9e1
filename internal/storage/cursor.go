package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
)

// GetRunCursor loads the cursor for a supplier's run.
func (s *SQLiteStorage) GetRunCursor(ctx context.Context, supplier, runID string) (*model.RunCursor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	var cursor model.RunCursor
	err := s.db.QueryRowContext(ctx, `
		SELECT supplier, run_id, last_processed_index, updated_at
		FROM run_cursors WHERE supplier = ? AND run_id = ?
	`, supplier, runID).Scan(
		&cursor.Supplier,
		&cursor.RunID,
		&cursor.LastProcessedIndex,
		&cursor.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run cursor: %w", err)
	}

	if cursor.LastProcessedIndex < 0 {
		// Negative index means a corrupt write; start over rather than
		// propagate an impossible position.
		cursor.LastProcessedIndex = 0
	}

	return &cursor, nil
}

// SaveRunCursor upserts the cursor. Called after every fully processed item
// so a crash loses at most the in-flight item.
func (s *SQLiteStorage) SaveRunCursor(ctx context.Context, cursor *model.RunCursor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCursor(cursor); err != nil {
		return err
	}

	cursor.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_cursors (supplier, run_id, last_processed_index, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(supplier, run_id) DO UPDATE SET
			last_processed_index = excluded.last_processed_index,
			updated_at = excluded.updated_at
	`, cursor.Supplier, cursor.RunID, cursor.LastProcessedIndex, cursor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run cursor: %w", err)
	}
	return nil
}

// ResetRunCursor removes all cursors for a supplier.
func (s *SQLiteStorage) ResetRunCursor(ctx context.Context, supplier string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_cursors WHERE supplier = ?`, supplier); err != nil {
		return fmt.Errorf("failed to reset run cursor: %w", err)
	}
	return nil
}
