// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/harlowes/magpie/internal/model"
)

// LinkFilter defines filtering options for linking record queries.
type LinkFilter struct {
	Supplier string
	Method   model.MatchMethod
	Limit    int
	Offset   int
}

// Storage defines the contract for our persistence layer. All writes are
// keyed upserts: a record either fully lands or is fully absent.
type Storage interface {
	// Linking record operations. The store holds at most one record per
	// source identifier; SaveLinkingRecord upserts by key.
	GetLinkingRecord(ctx context.Context, sourceID string) (*model.LinkingRecord, error)
	SaveLinkingRecord(ctx context.Context, record *model.LinkingRecord) error
	HasLinkingRecord(ctx context.Context, sourceID string) (bool, error)
	GetLinkingRecords(ctx context.Context, filter LinkFilter) ([]model.LinkingRecord, error)
	CountLinkingRecordsByMethod(ctx context.Context) (map[model.MatchMethod]int, error)
	DeleteLinkingRecords(ctx context.Context, supplier string) (int64, error)

	// Discovery history operations, one record per supplier.
	GetDiscoveryHistory(ctx context.Context, supplier string) (*model.DiscoveryHistory, error)
	SaveDiscoveryHistory(ctx context.Context, history *model.DiscoveryHistory) error
	AppendDecisionLog(ctx context.Context, supplier string, entry model.DecisionEntry) error
	ResetDiscoveryHistory(ctx context.Context, supplier string) error

	// Run cursor operations, one record per supplier per run.
	GetRunCursor(ctx context.Context, supplier, runID string) (*model.RunCursor, error)
	SaveRunCursor(ctx context.Context, cursor *model.RunCursor) error
	ResetRunCursor(ctx context.Context, supplier string) error

	// Report batch operations.
	SaveReportBatch(ctx context.Context, batchID string, rows []model.ReportRow) error
	GetReportRows(ctx context.Context, supplier string, since time.Time) ([]model.ReportRow, error)

	// Run summary operations.
	SaveRunSummary(ctx context.Context, summary *RunSummary) error
	GetLatestRunSummary(ctx context.Context, supplier string) (*RunSummary, error)

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// RunSummary reports the results of one supplier run.
type RunSummary struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Supplier        string
	RunID           string
	TierHistogram   map[model.DecisionTier]int
	Matched         int
	Unmatched       int
	SectionFailures int
	SectionsCrawled int
	ItemsSkipped    int
}

// Duration returns the wall-clock length of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
