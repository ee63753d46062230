package model

import "time"

// RunStatus tracks a batch run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// MatchRun is one execution of the match cascade over an invoice batch.
type MatchRun struct {
	ID          string     `json:"id"`
	CatalogHash string     `json:"catalog_hash"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Stats       *RunStats  `json:"stats,omitempty"`
}

// RunStats holds the aggregate counters reported for a batch run. These
// counters are the primary observability signal; per-record errors are
// recovered locally and never surfaced individually.
type RunStats struct {
	Total         int                     `json:"total"`
	Matched       int                     `json:"matched"`
	Filtered      int                     `json:"filtered"`
	Unresolved    int                     `json:"unresolved"`
	PriceResolved int                     `json:"price_resolved"`
	PriceNotFound int                     `json:"price_not_found"`
	ByStage       map[MatchProvenance]int `json:"by_stage"`
}

// NewRunStats returns a zeroed stats record with the stage map allocated.
func NewRunStats() *RunStats {
	return &RunStats{ByStage: make(map[MatchProvenance]int)}
}

// Record tallies one line item's terminal matching state. Non-pharma
// lines removed by the deny-list count as filtered, not matched.
func (s *RunStats) Record(li *InvoiceLineItem) {
	s.Total++
	switch {
	case li.Provenance == ProvenanceFiltered:
		s.Filtered++
		s.ByStage[li.Provenance]++
	case li.Resolved():
		s.Matched++
		s.ByStage[li.Provenance]++
	default:
		s.Unresolved++
	}
}
