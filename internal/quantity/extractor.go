// Package quantity extracts structured dose, volume, and unit-count
// attributes from normalized presentation text.
package quantity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

// Rule identifies which unit-count heuristic fired, from most to least
// reliable.
type Rule string

const (
	RuleNone         Rule = ""
	RuleBoxedItems   Rule = "boxed_item_count"   // "CX 10 FA"
	RuleItemCount    Rule = "item_count"         // "50 FA"
	RulePlainBox     Rule = "plain_box_count"    // "CX 50"
	RuleMultiplier   Rule = "multiplier"         // "BL X 30"
	RuleSingleItem   Rule = "single_item"        // item word with no count
)

// itemTypes are the packaging words that count as primary items.
const itemTypes = `\b(FA|SER|ENV|AMP|CARP?|CART|BL|FR|BG|CAPS?|CX|CT|BOLSAS?|SACHES?|TUBOS?|XPE)\b`

// measureUnits are measurement units that must not be mistaken for item
// counts.
const measureUnits = `\b(ML|MG|MCG|G|UI|MM|MEQ|L)\b`

var (
	boxedItemsRe = regexp.MustCompile(`\b(?:CX|CT)\s+(\d+)\s+` + itemTypes)
	itemCountRe  = regexp.MustCompile(`(\d+)\s+` + itemTypes)
	plainBoxRe   = regexp.MustCompile(`\b(?:CX|CT)\s+(\d+)\b`)
	xCountRe     = regexp.MustCompile(`X\s+(\d+)`)
	anyItemRe    = regexp.MustCompile(itemTypes)

	// sanitizeRe drops "X 100 ML" style spans before unit counting so a
	// volume multiplier is not read as 100 items.
	sanitizeRe    = regexp.MustCompile(`X\s+\d+(?:\.\d+)?\s+` + measureUnits)
	measureNextRe = regexp.MustCompile(`^\s+` + measureUnits)

	// dosageRe captures dose expressions including grouped sums like
	// "(500 + 125) MG".
	dosageRe = regexp.MustCompile(`((?:\(?\s*\d+(?:[.,]\d+)?\s*(?:\+\s*)?)+\)?)\s*(MG|G|MCG)\b`)
	volumeRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*ML\b`)
	unitsIRe = regexp.MustCompile(`(\d+(?:[.,\s]\d{3})*)\s*(?:UI|U\s*I)\b`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	tubeRe   = regexp.MustCompile(`\bBG\b`)
	gramRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*G\b`)

	thousandSepRe = regexp.MustCompile(`(\d)\.(\d{3})\b`)
)

// stripThousandSeparators removes dots used as thousand separators
// ("1.000.000" -> "1000000"). Chained separators need repeated passes.
func stripThousandSeparators(s string) string {
	for {
		next := thousandSepRe.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}
		s = next
	}
}

// Extract parses a normalized presentation into its quantity attributes.
// Dose values in G and MCG fold into MG; the unit count defaults to 1
// when no heuristic fires.
func Extract(presentation string) (model.Quantities, Rule) {
	t := strings.ToUpper(presentation)
	t = stripThousandSeparators(t)
	t = strings.ReplaceAll(t, ",", ".")

	q := model.Quantities{UnitCount: 1}

	for _, m := range dosageRe.FindAllStringSubmatch(t, -1) {
		unit := m[2]
		for _, raw := range numberRe.FindAllString(m[1], -1) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			switch unit {
			case "G":
				q.MG += v * 1000
			case "MCG":
				q.MG += v / 1000
			default:
				q.MG += v
			}
		}
	}

	// Tubes report total content weight: the last gram figure wins over
	// any summed dose.
	if strings.Contains(t, "BISNAGA") || tubeRe.MatchString(t) {
		if grams := gramRe.FindAllStringSubmatch(t, -1); len(grams) > 0 {
			if v, err := strconv.ParseFloat(grams[len(grams)-1][1], 64); err == nil {
				q.MG = v * 1000
			}
		}
	}

	for _, m := range volumeRe.FindAllStringSubmatch(t, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			q.ML += v
		}
	}

	for _, m := range unitsIRe.FindAllStringSubmatch(t, -1) {
		raw := strings.NewReplacer(" ", "", ".", "").Replace(m[1])
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			q.UI += v
		}
	}

	counted := sanitizeRe.ReplaceAllString(t, "")
	rule := RuleNone
	switch {
	case apply(&q, boxedItemsRe, counted):
		rule = RuleBoxedItems
	case apply(&q, itemCountRe, counted):
		rule = RuleItemCount
	case apply(&q, plainBoxRe, counted):
		rule = RulePlainBox
	case applyMultiplier(&q, counted):
		rule = RuleMultiplier
	case anyItemRe.MatchString(counted):
		q.UnitCount = 1
		rule = RuleSingleItem
	}
	return q, rule
}

func apply(q *model.Quantities, re *regexp.Regexp, s string) bool {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	q.UnitCount = v
	return true
}

// applyMultiplier takes the first "X n" occurrence not followed by a
// measurement unit.
func applyMultiplier(q *model.Quantities, s string) bool {
	for _, m := range xCountRe.FindAllStringSubmatchIndex(s, -1) {
		if measureNextRe.MatchString(s[m[1]:]) {
			continue
		}
		v, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			continue
		}
		q.UnitCount = v
		return true
	}
	return false
}
