// Package report aggregates run counters from the store into a
// point-in-time snapshot. The counters are the pipeline's primary
// observability signal; there is no per-record reporting.
package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/store"
)

// Snapshot holds aggregated matching metrics over a lookback window.
type Snapshot struct {
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsFailed   int `json:"runs_failed"`
	RunsRunning  int `json:"runs_running"`

	// Line-item counters summed over completed runs in the window.
	ItemsTotal      int                           `json:"items_total"`
	ItemsMatched    int                           `json:"items_matched"`
	ItemsFiltered   int                           `json:"items_filtered"`
	ItemsUnresolved int                           `json:"items_unresolved"`
	PriceResolved   int                           `json:"price_resolved"`
	PriceNotFound   int                           `json:"price_not_found"`
	MatchRate       float64                       `json:"match_rate"`
	ByStage         map[model.MatchProvenance]int `json:"by_stage"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect aggregates all runs started within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	snap := &Snapshot{
		ByStage:       make(map[model.MatchProvenance]int),
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "report: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Stats == nil {
			continue
		}
		snap.ItemsTotal += r.Stats.Total
		snap.ItemsMatched += r.Stats.Matched
		snap.ItemsFiltered += r.Stats.Filtered
		snap.ItemsUnresolved += r.Stats.Unresolved
		snap.PriceResolved += r.Stats.PriceResolved
		snap.PriceNotFound += r.Stats.PriceNotFound
		for stage, n := range r.Stats.ByStage {
			snap.ByStage[stage] += n
		}
	}

	// Filtered lines are out of scope for the rate; they were never
	// matchable.
	matchable := snap.ItemsTotal - snap.ItemsFiltered
	if matchable > 0 {
		snap.MatchRate = float64(snap.ItemsMatched) / float64(matchable)
	}
	return snap, nil
}
