// Package store persists match runs, their unresolved partitions, and
// the consolidated price-interval table.
package store

import (
	"context"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// RunFilter specifies criteria for listing match runs.
type RunFilter struct {
	Status      model.RunStatus `json:"status,omitempty"`
	CatalogHash string          `json:"catalog_hash,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store is the persistence interface behind the matching pipeline. A
// run is created before the cascade starts, completed with its
// aggregate counters, and keeps its matched rows (with resolved
// prices) and its unresolved rows queryable, the latter for manual
// review. Intervals are keyed by price ID so re-consolidation is
// idempotent.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, catalogHash string) (*model.MatchRun, error)
	CompleteRun(ctx context.Context, runID string, stats *model.RunStats) error
	FailRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*model.MatchRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error)

	// Matched partition, with resolved prices
	SaveMatched(ctx context.Context, runID string, items []model.MatchedItem) error
	ListMatched(ctx context.Context, runID string) ([]model.MatchedItem, error)

	// Unresolved partition
	SaveUnresolved(ctx context.Context, runID string, items []*model.InvoiceLineItem) error
	ListUnresolved(ctx context.Context, runID string) ([]*model.InvoiceLineItem, error)

	// Consolidated price intervals
	SaveIntervals(ctx context.Context, intervals []model.PriceInterval) error
	LoadIntervals(ctx context.Context) ([]model.PriceInterval, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
