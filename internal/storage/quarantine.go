package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// QuarantinedRecord describes a record moved aside because it could not be
// parsed or validated. Processing proceeds as if the record were absent.
type QuarantinedRecord struct {
	QuarantinedAt time.Time
	SourceTable   string
	RecordKey     string
	RawPayload    string
	Reason        string
	ID            int64
}

// Quarantine moves a corrupt record's payload into the quarantine table.
func (s *SQLiteStorage) Quarantine(ctx context.Context, sourceTable, recordKey, rawPayload, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantine (source_table, record_key, raw_payload, reason)
		VALUES (?, ?, ?, ?)
	`, sourceTable, recordKey, rawPayload, reason)
	if err != nil {
		return fmt.Errorf("failed to quarantine record: %w", err)
	}

	slog.Warn("Quarantined corrupt record",
		"table", sourceTable,
		"key", recordKey,
		"reason", reason)
	return nil
}

// GetQuarantinedRecords lists quarantined records for inspection.
func (s *SQLiteStorage) GetQuarantinedRecords(ctx context.Context) ([]QuarantinedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_table, record_key, raw_payload, reason, quarantined_at
		FROM quarantine ORDER BY quarantined_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarantine: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []QuarantinedRecord
	for rows.Next() {
		var rec QuarantinedRecord
		if err := rows.Scan(&rec.ID, &rec.SourceTable, &rec.RecordKey, &rec.RawPayload,
			&rec.Reason, &rec.QuarantinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quarantined record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
