package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
	"github.com/harlowes/magpie/internal/service"
)

// GetLinkingRecord retrieves a linking record by source identifier.
func (s *SQLiteStorage) GetLinkingRecord(ctx context.Context, sourceID string) (*model.LinkingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceID, "sourceID"); err != nil {
		return nil, err
	}

	if rec := s.cachedRecord(sourceID); rec != nil {
		return rec, nil
	}

	var rec model.LinkingRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT source_id, marketplace_id, method, confidence, supplier, created_at, last_updated
		FROM linking_records
		WHERE source_id = ?
	`, sourceID).Scan(
		&rec.SourceID,
		&rec.MarketplaceID,
		&rec.Method,
		&rec.Confidence,
		&rec.Supplier,
		&rec.CreatedAt,
		&rec.LastUpdated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linking record: %w", err)
	}

	if vErr := validateLinkingRecord(&rec); vErr != nil {
		// Corrupt row: quarantine it and report absence rather than
		// handing a bad record to callers.
		reason := fmt.Errorf("%w: %w", common.ErrCorruptRecord, vErr)
		if qErr := s.quarantineLinkingRecord(ctx, sourceID, reason); qErr != nil {
			slog.Error("Failed to quarantine corrupt linking record",
				"source_id", sourceID, "error", qErr)
		}
		return nil, common.ErrNotFound
	}

	s.cacheRecord(&rec)
	return &rec, nil
}

// HasLinkingRecord reports whether a source identifier is already linked.
func (s *SQLiteStorage) HasLinkingRecord(ctx context.Context, sourceID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(sourceID, "sourceID"); err != nil {
		return false, err
	}

	if s.cachedRecord(sourceID) != nil {
		return true, nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM linking_records WHERE source_id = ?)
	`, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check linking record: %w", err)
	}
	return exists, nil
}

// SaveLinkingRecord upserts a linking record by source identifier. The store
// is a keyed map, never an appended sequence: at most one record per
// identifier survives any sequence of writes. A concurrent writer from
// another supplier task resolves last-writer-wins with a logged conflict.
func (s *SQLiteStorage) SaveLinkingRecord(ctx context.Context, record *model.LinkingRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinkingRecord(record); err != nil {
		return err
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.LastUpdated = now

	existing, err := s.GetLinkingRecord(ctx, record.SourceID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if existing != nil {
		if !existing.Supersedes(record.Confidence) {
			slog.Debug("Keeping higher-confidence linking record",
				"source_id", record.SourceID,
				"existing_confidence", existing.Confidence,
				"new_confidence", record.Confidence)
			return nil
		}
		if existing.Supplier != record.Supplier && record.Supplier != "" && existing.Supplier != "" {
			slog.Warn("Linking record conflict across suppliers, last writer wins",
				"source_id", record.SourceID,
				"previous_supplier", existing.Supplier,
				"new_supplier", record.Supplier)
		}
		record.CreatedAt = existing.CreatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linking_records (source_id, marketplace_id, method, confidence, supplier, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			marketplace_id = excluded.marketplace_id,
			method = excluded.method,
			confidence = excluded.confidence,
			supplier = excluded.supplier,
			last_updated = excluded.last_updated
	`, record.SourceID, record.MarketplaceID, record.Method, record.Confidence,
		record.Supplier, record.CreatedAt, record.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save linking record: %w", err)
	}

	s.cacheRecord(record)
	return nil
}

// GetLinkingRecords retrieves linking records matching the filter.
func (s *SQLiteStorage) GetLinkingRecords(ctx context.Context, filter service.LinkFilter) ([]model.LinkingRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT source_id, marketplace_id, method, confidence, supplier, created_at, last_updated
		FROM linking_records WHERE 1=1`
	args := []any{}

	if filter.Supplier != "" {
		query += ` AND supplier = ?`
		args = append(args, filter.Supplier)
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, filter.Method)
	}
	query += ` ORDER BY last_updated DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query linking records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.LinkingRecord
	for rows.Next() {
		var rec model.LinkingRecord
		if err := rows.Scan(
			&rec.SourceID,
			&rec.MarketplaceID,
			&rec.Method,
			&rec.Confidence,
			&rec.Supplier,
			&rec.CreatedAt,
			&rec.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan linking record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountLinkingRecordsByMethod returns per-method record counts.
func (s *SQLiteStorage) CountLinkingRecordsByMethod(ctx context.Context) (map[model.MatchMethod]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT method, COUNT(*) FROM linking_records GROUP BY method
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count linking records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.MatchMethod]int)
	for rows.Next() {
		var method model.MatchMethod
		var count int
		if err := rows.Scan(&method, &count); err != nil {
			return nil, fmt.Errorf("failed to scan method count: %w", err)
		}
		counts[method] = count
	}
	return counts, rows.Err()
}

// DeleteLinkingRecords removes linking records, optionally scoped to one
// supplier. Pass an empty supplier to clear the whole table. This is the
// explicit cache-reset path; nothing else deletes linking records.
func (s *SQLiteStorage) DeleteLinkingRecords(ctx context.Context, supplier string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var res sql.Result
	var err error
	if supplier == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM linking_records`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM linking_records WHERE supplier = ?`, supplier)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete linking records: %w", err)
	}

	s.clearCache()
	return res.RowsAffected()
}

func (s *SQLiteStorage) quarantineLinkingRecord(ctx context.Context, sourceID string, reason error) error {
	var payload sql.NullString
	_ = s.db.QueryRowContext(ctx, `
		SELECT marketplace_id || '|' || method || '|' || CAST(confidence AS TEXT)
		FROM linking_records WHERE source_id = ?
	`, sourceID).Scan(&payload)

	if err := s.Quarantine(ctx, "linking_records", sourceID, payload.String, reason.Error()); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM linking_records WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to remove quarantined record: %w", err)
	}
	s.evictRecord(sourceID)
	return nil
}
