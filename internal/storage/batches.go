package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
)

// SaveReportBatch persists one batch of accumulated report rows atomically:
// either every row in the batch lands or none of it does.
func (s *SQLiteStorage) SaveReportBatch(ctx context.Context, batchID string, rows []model.ReportRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_rows (batch_id, source_id, title, source_price, marketplace_id,
			listing_price, method, confidence, supplier, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		recordedAt := row.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			batchID, row.SourceID, row.Title, row.SourcePrice, row.MarketplaceID,
			row.ListingPrice, row.Method, row.Confidence, row.Supplier, recordedAt,
		); err != nil {
			return fmt.Errorf("failed to insert report row: %w", err)
		}
	}

	return tx.Commit()
}

// GetReportRows retrieves report rows recorded since a time. An empty
// supplier matches rows from every supplier.
func (s *SQLiteStorage) GetReportRows(ctx context.Context, supplier string, since time.Time) ([]model.ReportRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT source_id, title, source_price, marketplace_id, listing_price,
			method, confidence, supplier, recorded_at
		FROM report_rows
		WHERE recorded_at >= ?`
	args := []any{since}

	if supplier != "" {
		query += ` AND supplier = ?`
		args = append(args, supplier)
	}
	query += ` ORDER BY recorded_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.ReportRow
	for rows.Next() {
		var row model.ReportRow
		var marketplaceID sql.NullString
		if err := rows.Scan(&row.SourceID, &row.Title, &row.SourcePrice, &marketplaceID,
			&row.ListingPrice, &row.Method, &row.Confidence, &row.Supplier, &row.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		row.MarketplaceID = marketplaceID.String
		result = append(result, row)
	}
	return result, rows.Err()
}

// SaveRunSummary upserts the summary for a run.
func (s *SQLiteStorage) SaveRunSummary(ctx context.Context, summary *service.RunSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if summary == nil {
		return fmt.Errorf("%w: summary", ErrNilParameter)
	}
	if err := validateString(summary.RunID, "runID"); err != nil {
		return err
	}
	if err := validateString(summary.Supplier, "supplier"); err != nil {
		return err
	}

	histJSON, err := json.Marshal(summary.TierHistogram)
	if err != nil {
		return fmt.Errorf("failed to encode tier histogram: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_summaries (run_id, supplier, started_at, finished_at, matched,
			unmatched, items_skipped, sections_crawled, section_failures, tier_histogram)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, supplier) DO UPDATE SET
			finished_at = excluded.finished_at,
			matched = excluded.matched,
			unmatched = excluded.unmatched,
			items_skipped = excluded.items_skipped,
			sections_crawled = excluded.sections_crawled,
			section_failures = excluded.section_failures,
			tier_histogram = excluded.tier_histogram
	`, summary.RunID, summary.Supplier, summary.StartedAt, summary.FinishedAt,
		summary.Matched, summary.Unmatched, summary.ItemsSkipped,
		summary.SectionsCrawled, summary.SectionFailures, string(histJSON))
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// GetLatestRunSummary returns the most recently finished summary for a supplier.
func (s *SQLiteStorage) GetLatestRunSummary(ctx context.Context, supplier string) (*service.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return nil, err
	}

	var summary service.RunSummary
	var histJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, supplier, started_at, finished_at, matched, unmatched,
			items_skipped, sections_crawled, section_failures, tier_histogram
		FROM run_summaries WHERE supplier = ?
		ORDER BY finished_at DESC LIMIT 1
	`, supplier).Scan(&summary.RunID, &summary.Supplier, &summary.StartedAt, &summary.FinishedAt,
		&summary.Matched, &summary.Unmatched, &summary.ItemsSkipped,
		&summary.SectionsCrawled, &summary.SectionFailures, &histJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	if err := json.Unmarshal([]byte(histJSON), &summary.TierHistogram); err != nil {
		summary.TierHistogram = make(map[model.DecisionTier]int)
	}

	return &summary, nil
}
