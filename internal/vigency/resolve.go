package vigency

import (
	"sort"
	"time"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// Resolver answers point-in-time price lookups over the consolidated
// interval table. It is read-only after construction and safe for
// concurrent use.
type Resolver struct {
	byProduct map[string][]model.PriceInterval
}

func NewResolver(intervals []model.PriceInterval) *Resolver {
	byProduct := make(map[string][]model.PriceInterval, len(intervals))
	for _, pi := range intervals {
		byProduct[pi.ProductID] = append(byProduct[pi.ProductID], pi)
	}
	for id, list := range byProduct {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
		byProduct[id] = list
	}
	return &Resolver{byProduct: byProduct}
}

// AsOf finds the interval covering date for one product: the latest
// interval starting on or before the date, provided the date has not
// run past its end. A date falling in a coverage gap reports no price,
// which callers must keep distinct from an unmatched product.
func (r *Resolver) AsOf(productID string, date time.Time) (model.PriceInterval, bool) {
	list := r.byProduct[productID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start.After(date) })
	if i == 0 {
		return model.PriceInterval{}, false
	}
	pi := list[i-1]
	if !pi.Contains(date) {
		return model.PriceInterval{}, false
	}
	return pi, true
}

// Resolve tries each candidate product in order and returns the first
// one holding a valid interval with a filed ceiling at the emission
// date. Candidates whose intervals miss the date act as a secondary
// disambiguation signal and are simply skipped.
func (r *Resolver) Resolve(candidates []string, date time.Time) (model.ResolvedPrice, bool) {
	for _, id := range candidates {
		pi, ok := r.AsOf(id, date)
		if !ok {
			continue
		}
		ceiling := pi.Ceiling()
		if !ceiling.Valid {
			continue
		}
		return model.ResolvedPrice{
			ProductID: id,
			PriceID:   pi.PriceID,
			Ceiling:   ceiling.Decimal,
			CAP:       pi.CAP,
			ICMS0:     pi.ICMS0,
		}, true
	}
	return model.ResolvedPrice{}, false
}
