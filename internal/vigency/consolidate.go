// Package vigency collapses the monthly CMED price snapshots into
// minimal validity intervals and answers as-of price lookups against
// them.
package vigency

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// taxGross converts a 0% ICMS price into its 20% counterpart when the
// table only filed the former. The reverse direction is never derived.
var taxGross = decimal.RequireFromString("1.25")

// Consolidator turns a date-ordered snapshot series into the interval
// table the resolver consumes.
type Consolidator struct {
	log *zap.Logger
}

func NewConsolidator() *Consolidator {
	return &Consolidator{log: zap.L().With(zap.String("component", "vigency"))}
}

// Consolidate builds validity intervals from monthly snapshots. A new
// interval opens whenever the product changes or any priced attribute
// (the four ceilings, the ICMS 0% flag, the CAP flag) differs from the
// previous month; each interval ends one day before the next one starts,
// and a product's trailing interval gets the synthetic re-filing
// deadline. After construction the 20% ceilings are backfilled,
// duplicate (product, start) rows are dropped by completeness, and
// adjacent intervals made identical by the backfill are merged.
func (c *Consolidator) Consolidate(snaps []model.PriceSnapshot) []model.PriceInterval {
	if len(snaps) == 0 {
		return nil
	}

	ordered := make([]model.PriceSnapshot, len(snaps))
	copy(ordered, snaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ProductID != ordered[j].ProductID {
			return ordered[i].ProductID < ordered[j].ProductID
		}
		return ordered[i].ReferenceDate.Before(ordered[j].ReferenceDate)
	})

	var intervals []model.PriceInterval
	for i, s := range ordered {
		if i > 0 && s.ProductID == ordered[i-1].ProductID && samePricing(s, ordered[i-1]) {
			continue
		}
		intervals = append(intervals, model.PriceInterval{
			ProductID: s.ProductID,
			Start:     s.ReferenceDate,
			PF0:       s.PF0,
			PF20:      s.PF20,
			PMVG0:     s.PMVG0,
			PMVG20:    s.PMVG20,
			CAP:       s.CAP,
			ICMS0:     s.ICMS0,
		})
	}

	closeEnds(intervals)
	backfillGrossed(intervals)
	intervals = dedupeStarts(intervals)
	intervals = mergeIdentical(intervals)

	for i := range intervals {
		intervals[i].PriceID = priceID(intervals[i].ProductID, intervals[i].Start)
	}

	c.log.Info("vigency consolidation complete",
		zap.Int("snapshots", len(snaps)),
		zap.Int("intervals", len(intervals)))
	return intervals
}

// SyntheticEnd is the regulator's annual re-filing deadline capping a
// product's still-open interval: April 15 of the same year for
// intervals starting by March, April 15 of the following year
// otherwise.
func SyntheticEnd(start time.Time) time.Time {
	year := start.Year()
	if start.Month() > time.March {
		year++
	}
	return time.Date(year, time.April, 15, 0, 0, 0, 0, start.Location())
}

func samePricing(a, b model.PriceSnapshot) bool {
	return nullEq(a.PF0, b.PF0) &&
		nullEq(a.PF20, b.PF20) &&
		nullEq(a.PMVG0, b.PMVG0) &&
		nullEq(a.PMVG20, b.PMVG20) &&
		a.ICMS0 == b.ICMS0 &&
		a.CAP == b.CAP
}

func sameCeilings(a, b model.PriceInterval) bool {
	return nullEq(a.PF0, b.PF0) &&
		nullEq(a.PF20, b.PF20) &&
		nullEq(a.PMVG0, b.PMVG0) &&
		nullEq(a.PMVG20, b.PMVG20) &&
		a.ICMS0 == b.ICMS0 &&
		a.CAP == b.CAP
}

func nullEq(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func closeEnds(intervals []model.PriceInterval) {
	for i := range intervals {
		if i+1 < len(intervals) && intervals[i+1].ProductID == intervals[i].ProductID {
			intervals[i].End = intervals[i+1].Start.AddDate(0, 0, -1)
		} else {
			intervals[i].End = SyntheticEnd(intervals[i].Start)
		}
	}
}

func backfillGrossed(intervals []model.PriceInterval) {
	for i := range intervals {
		pi := &intervals[i]
		if !pi.PF20.Valid && pi.PF0.Valid {
			pi.PF20 = decimal.NullDecimal{Decimal: pi.PF0.Decimal.Mul(taxGross).Round(2), Valid: true}
		}
		if !pi.PMVG20.Valid && pi.PMVG0.Valid {
			pi.PMVG20 = decimal.NullDecimal{Decimal: pi.PMVG0.Decimal.Mul(taxGross).Round(2), Valid: true}
		}
	}
}

// dedupeStarts keeps one row per (product, start). On a collision the
// row with more filed ceilings wins; ties keep the earlier row.
func dedupeStarts(intervals []model.PriceInterval) []model.PriceInterval {
	out := intervals[:0]
	for _, pi := range intervals {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.ProductID == pi.ProductID && last.Start.Equal(pi.Start) {
				if completeness(pi) > completeness(*last) {
					*last = pi
				}
				continue
			}
		}
		out = append(out, pi)
	}
	return out
}

func completeness(pi model.PriceInterval) int {
	n := 0
	for _, d := range []decimal.NullDecimal{pi.PF0, pi.PF20, pi.PMVG0, pi.PMVG20} {
		if d.Valid {
			n++
		}
	}
	return n
}

// mergeIdentical joins adjacent same-product intervals whose ceilings
// ended up equal, which the backfill can produce when a month files the
// 20% variant a previous month left blank.
func mergeIdentical(intervals []model.PriceInterval) []model.PriceInterval {
	out := intervals[:0]
	for _, pi := range intervals {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.ProductID == pi.ProductID && sameCeilings(*last, pi) {
				last.End = pi.End
				continue
			}
		}
		out = append(out, pi)
	}
	return out
}

func priceID(productID string, start time.Time) string {
	return productID + "_" + start.Format("20060102")
}
