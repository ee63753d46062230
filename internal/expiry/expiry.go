// Package expiry derives shelf-life metrics and an expiry category for
// invoice line items from their manufacture, expiry, and emission dates.
package expiry

import (
	"regexp"
	"strings"
	"time"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// Category is the expiry status of one invoice line.
type Category string

const (
	CategoryExpired    Category = "VENCIDO"
	CategoryVeryNear   Category = "MUITO PROXIMO AO VENCIMENTO"
	CategoryNear       Category = "PROXIMO AO VENCIMENTO"
	CategoryAcceptable Category = "PRAZO ACEITAVEL"
	CategoryUnknown    Category = "INDETERMINADO"
)

// Metrics holds the derived shelf-life numbers. Each value is only
// meaningful when its flag is set; upstream systems leave any of the
// three dates blank or filled with placeholders.
type Metrics struct {
	TotalLife        int     // days between manufacture and expiry
	UsedLife         int     // days between manufacture and emission, floored at 0
	RemainingDays    int     // days between emission and expiry
	UsedFraction     float64 // UsedLife / TotalLife
	HasTotalLife     bool
	HasUsedLife      bool
	HasRemainingDays bool
	HasUsedFraction  bool
}

// Result pairs the metrics with the assigned category.
type Result struct {
	Metrics  Metrics
	Category Category
}

var (
	yyyymmddRe = regexp.MustCompile(`^\d{8}$`)

	// Placeholder dates that upstream systems emit instead of a blank.
	placeholders = map[string]struct{}{
		"2000-01-01": {},
		"2010-01-01": {},
		"2020-01-01": {},
	}

	invalidValues = map[string]struct{}{
		"": {}, "-1": {}, "nan": {}, "None": {}, "NaT": {}, "NULL": {}, "null": {},
	}

	dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}
)

// CleanDate parses one raw date string. Blank markers, unparseable
// values, and known placeholder dates all report ok=false.
func CleanDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if _, bad := invalidValues[s]; bad {
		return time.Time{}, false
	}
	if yyyymmddRe.MatchString(s) {
		s = s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if _, bad := placeholders[t.Format("2006-01-02")]; bad {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// Compute derives the shelf-life metrics from the three dates. A zero
// time means the date is missing; every metric that depends on it stays
// unset.
func Compute(manufacture, expiry, emission time.Time) Metrics {
	var m Metrics

	hasMan := !manufacture.IsZero()
	hasExp := !expiry.IsZero()
	hasEm := !emission.IsZero()

	if hasMan && hasExp {
		m.TotalLife = daysBetween(manufacture, expiry)
		m.HasTotalLife = true
	}
	if hasMan && hasEm {
		m.UsedLife = daysBetween(manufacture, emission)
		if m.UsedLife < 0 {
			m.UsedLife = 0
		}
		m.HasUsedLife = true
	}
	if hasEm && hasExp {
		m.RemainingDays = daysBetween(emission, expiry)
		m.HasRemainingDays = true
	}
	if m.HasTotalLife && m.TotalLife > 0 && m.HasUsedLife {
		m.UsedFraction = float64(m.UsedLife) / float64(m.TotalLife)
		m.HasUsedFraction = true
	}
	return m
}

// Categorize assigns an expiry category. Conditions are evaluated in
// priority order; any condition touching a missing metric is false, so
// partial data degrades toward INDETERMINADO rather than guessing.
func Categorize(manufacture, expiry, emission time.Time) Result {
	m := Compute(manufacture, expiry, emission)

	// Absurd remaining spans and zero-length shelf lives are data
	// errors, regardless of what the other conditions say.
	if (m.HasRemainingDays && m.RemainingDays < -3650) || (m.HasTotalLife && m.TotalLife == 0) {
		return Result{Metrics: m, Category: CategoryUnknown}
	}

	switch {
	case !expiry.IsZero() && !emission.IsZero() && emission.After(expiry):
		return Result{Metrics: m, Category: CategoryExpired}
	case m.HasUsedFraction && m.UsedFraction >= 0.75 && m.HasRemainingDays && m.RemainingDays < 365:
		return Result{Metrics: m, Category: CategoryVeryNear}
	case m.HasUsedFraction && m.UsedFraction >= 0.25 && m.UsedFraction < 0.75 && m.HasRemainingDays && m.RemainingDays < 365:
		return Result{Metrics: m, Category: CategoryNear}
	case (m.HasUsedFraction && m.UsedFraction < 0.75) || (m.HasRemainingDays && m.RemainingDays > 365):
		return Result{Metrics: m, Category: CategoryAcceptable}
	default:
		return Result{Metrics: m, Category: CategoryUnknown}
	}
}

// CategorizeItem cleans the line item's raw date fields and categorizes
// it. The emission date is scrubbed through the same placeholder filter
// as the free-text dates.
func CategorizeItem(li *model.InvoiceLineItem) Result {
	manuf, _ := CleanDate(li.ManufDate)
	exp, _ := CleanDate(li.ExpiryDate)

	emission := li.EmissionDate
	if !emission.IsZero() {
		if _, bad := placeholders[emission.Format("2006-01-02")]; bad {
			emission = time.Time{}
		}
	}
	return Categorize(manuf, exp, emission)
}

// Summarize tallies categories over a batch.
func Summarize(items []*model.InvoiceLineItem) map[Category]int {
	counts := make(map[Category]int)
	for _, li := range items {
		counts[CategorizeItem(li).Category]++
	}
	return counts
}
