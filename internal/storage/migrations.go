package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS linking_records (
					source_id TEXT PRIMARY KEY,
					marketplace_id TEXT NOT NULL,
					method TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					supplier TEXT,
					created_at DATETIME NOT NULL,
					last_updated DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_linking_supplier ON linking_records(supplier)`,
				`CREATE INDEX idx_linking_method ON linking_records(method)`,

				`CREATE TABLE IF NOT EXISTS discovery_history (
					supplier TEXT PRIMARY KEY,
					visited_sections TEXT NOT NULL DEFAULT '[]',
					processed_items TEXT NOT NULL DEFAULT '[]',
					section_performance TEXT NOT NULL DEFAULT '{}',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS decision_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					supplier TEXT NOT NULL,
					tier TEXT NOT NULL,
					chosen_sections TEXT NOT NULL DEFAULT '[]',
					rejected_sections TEXT NOT NULL DEFAULT '[]',
					rationale TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_decision_log_supplier ON decision_log(supplier)`,

				`CREATE TABLE IF NOT EXISTS run_cursors (
					supplier TEXT NOT NULL,
					run_id TEXT NOT NULL,
					last_processed_index INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (supplier, run_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Report batches and run summaries",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS report_rows (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id TEXT NOT NULL,
					source_id TEXT NOT NULL,
					title TEXT,
					source_price REAL NOT NULL DEFAULT 0,
					marketplace_id TEXT,
					listing_price REAL NOT NULL DEFAULT 0,
					method TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					supplier TEXT,
					recorded_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_report_rows_batch ON report_rows(batch_id)`,
				`CREATE INDEX idx_report_rows_supplier ON report_rows(supplier, recorded_at)`,

				`CREATE TABLE IF NOT EXISTS run_summaries (
					run_id TEXT PRIMARY KEY,
					supplier TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL,
					matched INTEGER NOT NULL DEFAULT 0,
					unmatched INTEGER NOT NULL DEFAULT 0,
					items_skipped INTEGER NOT NULL DEFAULT 0,
					sections_crawled INTEGER NOT NULL DEFAULT 0,
					section_failures INTEGER NOT NULL DEFAULT 0,
					tier_histogram TEXT NOT NULL DEFAULT '{}'
				)`,
				`CREATE INDEX idx_run_summaries_supplier ON run_summaries(supplier, finished_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Quarantine for corrupt records",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS quarantine (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_table TEXT NOT NULL,
					record_key TEXT NOT NULL,
					raw_payload TEXT,
					reason TEXT NOT NULL,
					quarantined_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`)
			if err != nil {
				return fmt.Errorf("failed to create quarantine table: %w", err)
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Key run summaries by run and supplier",
		Up: func(tx *sql.Tx) error {
			// Concurrent suppliers share a run ID, so each (run, supplier)
			// pair needs its own summary row. SQLite cannot alter a primary
			// key in place; rebuild the table.
			queries := []string{
				`CREATE TABLE run_summaries_new (
					run_id TEXT NOT NULL,
					supplier TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL,
					matched INTEGER NOT NULL DEFAULT 0,
					unmatched INTEGER NOT NULL DEFAULT 0,
					items_skipped INTEGER NOT NULL DEFAULT 0,
					sections_crawled INTEGER NOT NULL DEFAULT 0,
					section_failures INTEGER NOT NULL DEFAULT 0,
					tier_histogram TEXT NOT NULL DEFAULT '{}',
					PRIMARY KEY (run_id, supplier)
				)`,
				`INSERT INTO run_summaries_new SELECT run_id, supplier, started_at,
					finished_at, matched, unmatched, items_skipped, sections_crawled,
					section_failures, tier_histogram FROM run_summaries`,
				`DROP TABLE run_summaries`,
				`ALTER TABLE run_summaries_new RENAME TO run_summaries`,
				`CREATE INDEX idx_run_summaries_supplier ON run_summaries(supplier, finished_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
			m.Version, m.Description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	return nil
}
