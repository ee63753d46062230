package matcher

import (
	"sort"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
)

// Name-score blend between the full-text and stopword-stripped
// comparisons.
const (
	baseNameWeight     = 0.4
	specificNameWeight = 0.6
)

// neutralScore stands in when a signal is absent: an empty query lab or
// a query with no numeric attributes neither rewards nor penalizes.
const neutralScore = 0.5

// maxRankedCandidates caps the candidate ID list carried forward for
// temporal disambiguation.
const maxRankedCandidates = 5

// ScorerConfig holds the tunable weights and cutoffs of the hybrid
// score.
type ScorerConfig struct {
	NameWeight       float64 `mapstructure:"name_weight"`
	LabWeight        float64 `mapstructure:"lab_weight"`
	NumericWeight    float64 `mapstructure:"numeric_weight"`
	PrecisionBonus   float64 `mapstructure:"precision_bonus"`
	PrecisionCutoff  float64 `mapstructure:"precision_cutoff"`
	Tolerance        float64 `mapstructure:"tolerance"`
	JaccardThreshold float64 `mapstructure:"jaccard_threshold"`
}

// DefaultScorerConfig returns the production weights.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		NameWeight:       0.60,
		LabWeight:        0.10,
		NumericWeight:    0.30,
		PrecisionBonus:   0.15,
		PrecisionCutoff:  98,
		Tolerance:        0.06,
		JaccardThreshold: 0.175,
	}
}

// Query is one deduplicated matching request: cleaned product text,
// cleaned laboratory text, and the extracted numeric attributes. Zero
// numeric fields are treated as absent.
type Query struct {
	Name       string
	Lab        string
	Quantities model.Quantities
}

// Match is a scored winner plus the ranked runner-up IDs kept for
// temporal disambiguation downstream.
type Match struct {
	Product    *model.CanonicalProduct
	Score      float64
	Candidates []string
}

// Scorer ranks index candidates for a query with the weighted hybrid
// score.
type Scorer struct {
	cfg  ScorerConfig
	ix   *CandidateIndex
	norm *normalize.Normalizer
}

// NewScorer wires a scorer over a built index.
func NewScorer(cfg ScorerConfig, ix *CandidateIndex, norm *normalize.Normalizer) *Scorer {
	return &Scorer{cfg: cfg, ix: ix, norm: norm}
}

// numericScore compares one attribute pair: both absent is a match, one
// absent is a hard mismatch, otherwise the relative difference must stay
// within tolerance.
func numericScore(a, b, tolerance float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	if a == 0 || b == 0 {
		return 0
	}
	larger := a
	if b > larger {
		larger = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff/larger <= tolerance {
		return 1
	}
	return 0
}

// Best scores the index candidates for q and returns the highest-scoring
// product. Ties keep the earliest catalog row. ok is false when the
// query text is empty or no candidate survives the Jaccard pre-filter.
func (s *Scorer) Best(q Query) (Match, bool) {
	name := s.norm.ApplySynonyms(q.Name)
	if name == "" {
		return Match{}, false
	}
	searchWords := WordSet(name)
	pool := s.ix.candidates(searchWords)
	if len(pool) == 0 {
		return Match{}, false
	}
	specific := s.norm.StripStopwords(name)

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored

	for _, idx := range pool {
		e := &s.ix.entries[idx]
		if Jaccard(e.wordSet, searchWords) <= s.cfg.JaccardThreshold {
			continue
		}

		base := TokenSetRatio(name, e.cleanName)
		if r := TokenSetRatio(name, e.cleanIngredient); r > base {
			base = r
		}
		spec := TokenSortRatio(specific, e.nameSpecific)
		if r := TokenSortRatio(specific, e.ingredientSpecific); r > spec {
			spec = r
		}
		nameScore := (base*baseNameWeight + spec*specificNameWeight) / 100

		bonus := 0.0
		if QRatio(name, e.cleanName) > s.cfg.PrecisionCutoff {
			bonus = s.cfg.PrecisionBonus
		}

		labScore := neutralScore
		if q.Lab != "" {
			labScore = TokenSetRatio(q.Lab, e.cleanLab) / 100
		}

		var numSum float64
		numCount := 0
		pairs := [4][2]float64{
			{q.Quantities.MG, e.product.Quantities.MG},
			{q.Quantities.ML, e.product.Quantities.ML},
			{q.Quantities.UI, e.product.Quantities.UI},
			{float64(q.Quantities.UnitCount), float64(e.product.Quantities.UnitCount)},
		}
		for _, pair := range pairs {
			if pair[0] > 0 {
				numSum += numericScore(pair[0], pair[1], s.cfg.Tolerance)
				numCount++
			}
		}
		numScore := neutralScore
		if numCount > 0 {
			numScore = numSum / float64(numCount)
		}

		total := nameScore*s.cfg.NameWeight +
			labScore*s.cfg.LabWeight +
			numScore*s.cfg.NumericWeight +
			bonus
		ranked = append(ranked, scored{idx: idx, score: total})
	}
	if len(ranked) == 0 {
		return Match{}, false
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	m := Match{
		Product: s.ix.entries[ranked[0].idx].product,
		Score:   ranked[0].score,
	}
	limit := len(ranked)
	if limit > maxRankedCandidates {
		limit = maxRankedCandidates
	}
	for _, sc := range ranked[:limit] {
		m.Candidates = append(m.Candidates, s.ix.entries[sc.idx].product.ID)
	}
	return m, true
}
