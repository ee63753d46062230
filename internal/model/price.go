package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is one row of a monthly CMED price table, before
// consolidation into validity intervals.
type PriceSnapshot struct {
	ProductID        string
	ReferenceDate    time.Time // first day of the snapshot month
	Name             string
	ActiveIngredient string
	Laboratory       string
	Presentation     string
	TherapeuticClass string
	Status           ProductStatus
	Regime           string
	Registration     string
	GGREM            string
	EAN1             string
	EAN2             string
	EAN3             string
	PF0              decimal.NullDecimal
	PF20             decimal.NullDecimal
	PMVG0            decimal.NullDecimal
	PMVG20           decimal.NullDecimal
	CAP              bool
	ICMS0            bool
}

// PriceInterval is a validity window during which a product keeps one
// fixed set of ceiling prices. End is the zero time while the interval is
// still open; consolidation patches it with either the next interval's
// start minus one day or the synthetic annual re-filing deadline.
type PriceInterval struct {
	PriceID   string
	ProductID string
	Start     time.Time
	End       time.Time
	PF0       decimal.NullDecimal
	PF20      decimal.NullDecimal
	PMVG0     decimal.NullDecimal
	PMVG20    decimal.NullDecimal
	CAP       bool
	ICMS0     bool
}

// Open reports whether the interval has no end date yet.
func (pi PriceInterval) Open() bool {
	return pi.End.IsZero()
}

// Contains reports whether date falls inside the interval. An open
// interval contains every date on or after its start.
func (pi PriceInterval) Contains(date time.Time) bool {
	if date.Before(pi.Start) {
		return false
	}
	return pi.Open() || !date.After(pi.End)
}

// Ceiling selects the applicable maximum price for the interval's
// CAP/ICMS regime flags:
//
//	CAP + ICMS 0%      -> PMVG 0%
//	CAP, ICMS charged  -> PMVG 20%
//	no CAP, ICMS 0%    -> PF 0%
//	no CAP, charged    -> PF 20%
func (pi PriceInterval) Ceiling() decimal.NullDecimal {
	switch {
	case pi.CAP && pi.ICMS0:
		return pi.PMVG0
	case pi.CAP:
		return pi.PMVG20
	case pi.ICMS0:
		return pi.PF0
	default:
		return pi.PF20
	}
}

// ResolvedPrice is the outcome of resolving a matched product against an
// emission date.
type ResolvedPrice struct {
	ProductID string          `json:"product_id"`
	PriceID   string          `json:"price_id"`
	Ceiling   decimal.Decimal `json:"ceiling"`
	CAP       bool            `json:"cap"`
	ICMS0     bool            `json:"icms0"`
}

// MatchedItem pairs a matched invoice line, carrying its product and
// provenance, with the ceiling price resolved for its emission date.
// Price is nil when the line matched but no valid interval covered the
// date.
type MatchedItem struct {
	Line  *InvoiceLineItem `json:"line"`
	Price *ResolvedPrice   `json:"price,omitempty"`
}
