package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harlowes/magpie/internal/common"
	"github.com/harlowes/magpie/internal/model"
)

// sectionStatsRow is the JSON shape persisted for section performance.
type sectionStatsRow struct {
	LastVisited time.Time `json:"last_visited"`
	ItemsFound  int       `json:"items_found"`
}

// GetDiscoveryHistory loads a supplier's discovery history. A missing record
// returns a fresh empty history rather than an error; a corrupt record is
// quarantined and likewise treated as absent.
func (s *SQLiteStorage) GetDiscoveryHistory(ctx context.Context, supplier string) (*model.DiscoveryHistory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return nil, err
	}

	var visitedJSON, processedJSON, perfJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT visited_sections, processed_items, section_performance
		FROM discovery_history WHERE supplier = ?
	`, supplier).Scan(&visitedJSON, &processedJSON, &perfJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return model.NewDiscoveryHistory(supplier), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discovery history: %w", err)
	}

	history, parseErr := decodeHistory(supplier, visitedJSON, processedJSON, perfJSON)
	if parseErr != nil {
		reason := fmt.Errorf("%w: %w", common.ErrCorruptRecord, parseErr)
		payload := strings.Join([]string{visitedJSON, processedJSON, perfJSON}, "\n")
		if qErr := s.Quarantine(ctx, "discovery_history", supplier, payload, reason.Error()); qErr != nil {
			slog.Error("Failed to quarantine corrupt discovery history",
				"supplier", supplier, "error", qErr)
		}
		if _, delErr := s.db.ExecContext(ctx, `DELETE FROM discovery_history WHERE supplier = ?`, supplier); delErr != nil {
			slog.Error("Failed to remove quarantined discovery history",
				"supplier", supplier, "error", delErr)
		}
		return model.NewDiscoveryHistory(supplier), nil
	}

	log, err := s.getDecisionLog(ctx, supplier)
	if err != nil {
		return nil, err
	}
	history.DecisionLog = log

	return history, nil
}

func decodeHistory(supplier, visitedJSON, processedJSON, perfJSON string) (*model.DiscoveryHistory, error) {
	var visited, processed []string
	if err := json.Unmarshal([]byte(visitedJSON), &visited); err != nil {
		return nil, fmt.Errorf("visited sections unparseable: %w", err)
	}
	if err := json.Unmarshal([]byte(processedJSON), &processed); err != nil {
		return nil, fmt.Errorf("processed items unparseable: %w", err)
	}
	var perf map[string]sectionStatsRow
	if err := json.Unmarshal([]byte(perfJSON), &perf); err != nil {
		return nil, fmt.Errorf("section performance unparseable: %w", err)
	}

	history := model.NewDiscoveryHistory(supplier)
	for _, url := range visited {
		history.VisitedSections[url] = true
	}
	for _, id := range processed {
		history.ProcessedItems[id] = true
	}
	for url, row := range perf {
		history.SectionPerformance[url] = model.SectionStats{
			URL:         url,
			ItemsFound:  row.ItemsFound,
			LastVisited: row.LastVisited,
		}
	}
	return history, nil
}

// SaveDiscoveryHistory upserts a supplier's discovery history. The decision
// log is persisted separately via AppendDecisionLog and is not rewritten here.
func (s *SQLiteStorage) SaveDiscoveryHistory(ctx context.Context, history *model.DiscoveryHistory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if history == nil {
		return fmt.Errorf("%w: history", ErrNilParameter)
	}
	if err := validateString(history.Supplier, "supplier"); err != nil {
		return err
	}

	visited := make([]string, 0, len(history.VisitedSections))
	for url := range history.VisitedSections {
		visited = append(visited, url)
	}
	processed := make([]string, 0, len(history.ProcessedItems))
	for id := range history.ProcessedItems {
		processed = append(processed, id)
	}
	perf := make(map[string]sectionStatsRow, len(history.SectionPerformance))
	for url, stats := range history.SectionPerformance {
		perf[url] = sectionStatsRow{ItemsFound: stats.ItemsFound, LastVisited: stats.LastVisited}
	}

	visitedJSON, err := json.Marshal(visited)
	if err != nil {
		return fmt.Errorf("failed to encode visited sections: %w", err)
	}
	processedJSON, err := json.Marshal(processed)
	if err != nil {
		return fmt.Errorf("failed to encode processed items: %w", err)
	}
	perfJSON, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("failed to encode section performance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO discovery_history (supplier, visited_sections, processed_items, section_performance, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(supplier) DO UPDATE SET
			visited_sections = excluded.visited_sections,
			processed_items = excluded.processed_items,
			section_performance = excluded.section_performance,
			updated_at = CURRENT_TIMESTAMP
	`, history.Supplier, string(visitedJSON), string(processedJSON), string(perfJSON))
	if err != nil {
		return fmt.Errorf("failed to save discovery history: %w", err)
	}
	return nil
}

// AppendDecisionLog records one discovery attempt. The log is append-only;
// it is pruned only by ResetDiscoveryHistory.
func (s *SQLiteStorage) AppendDecisionLog(ctx context.Context, supplier string, entry model.DecisionEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return err
	}

	chosenJSON, err := json.Marshal(entry.ChosenSections)
	if err != nil {
		return fmt.Errorf("failed to encode chosen sections: %w", err)
	}
	rejectedJSON, err := json.Marshal(entry.RejectedSections)
	if err != nil {
		return fmt.Errorf("failed to encode rejected sections: %w", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_log (supplier, tier, chosen_sections, rejected_sections, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, supplier, entry.Tier, string(chosenJSON), string(rejectedJSON), entry.Rationale, ts)
	if err != nil {
		return fmt.Errorf("failed to append decision log: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) getDecisionLog(ctx context.Context, supplier string) ([]model.DecisionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, chosen_sections, rejected_sections, rationale, created_at
		FROM decision_log WHERE supplier = ? ORDER BY id
	`, supplier)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.DecisionEntry
	for rows.Next() {
		var entry model.DecisionEntry
		var chosenJSON, rejectedJSON string
		var rationale sql.NullString
		if err := rows.Scan(&entry.Tier, &chosenJSON, &rejectedJSON, &rationale, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan decision entry: %w", err)
		}
		entry.Rationale = rationale.String
		if err := json.Unmarshal([]byte(chosenJSON), &entry.ChosenSections); err != nil {
			slog.Warn("Skipping decision entry with unparseable sections",
				"supplier", supplier, "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(rejectedJSON), &entry.RejectedSections); err != nil {
			slog.Warn("Skipping decision entry with unparseable sections",
				"supplier", supplier, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ResetDiscoveryHistory removes a supplier's history and decision log.
func (s *SQLiteStorage) ResetDiscoveryHistory(ctx context.Context, supplier string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(supplier, "supplier"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discovery_history WHERE supplier = ?`, supplier); err != nil {
		return fmt.Errorf("failed to reset discovery history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decision_log WHERE supplier = ?`, supplier); err != nil {
		return fmt.Errorf("failed to reset decision log: %w", err)
	}

	return tx.Commit()
}
