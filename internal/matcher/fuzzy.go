// Package matcher links invoice line items to canonical catalog
// products through a staged cascade: exact key joins, a
// unique-presentation join, weighted fuzzy scoring, a manual reference
// table, and an AI-assisted extraction fallback.
package matcher

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio is edit-distance similarity scaled to 0..100. Two empty strings
// are identical; one empty side scores zero.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(longer)) * 100
}

func sortedTokens(s string) []string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return fields
}

func uniqueSortedTokens(s string) []string {
	fields := sortedTokens(s)
	out := fields[:0]
	for i, f := range fields {
		if i == 0 || f != fields[i-1] {
			out = append(out, f)
		}
	}
	return out
}

// TokenSortRatio compares the two strings with their tokens sorted, so
// word order does not matter.
func TokenSortRatio(a, b string) float64 {
	return Ratio(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
}

// TokenSetRatio splits both strings into token sets and scores the
// shared core against each side's remainder, taking the best of the
// three comparisons. Insensitive to word order and to tokens one side
// repeats or adds.
func TokenSetRatio(a, b string) float64 {
	ta, tb := uniqueSortedTokens(a), uniqueSortedTokens(b)

	inB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		inB[t] = struct{}{}
	}
	inA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		inA[t] = struct{}{}
	}

	var inter, diffA, diffB []string
	for _, t := range ta {
		if _, ok := inB[t]; ok {
			inter = append(inter, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range tb {
		if _, ok := inA[t]; !ok {
			diffB = append(diffB, t)
		}
	}

	sect := strings.Join(inter, " ")
	combA := strings.TrimSpace(sect + " " + strings.Join(diffA, " "))
	combB := strings.TrimSpace(sect + " " + strings.Join(diffB, " "))

	best := Ratio(sect, combA)
	if r := Ratio(sect, combB); r > best {
		best = r
	}
	if r := Ratio(combA, combB); r > best {
		best = r
	}
	return best
}

// QRatio is the quick full-string ratio used for the near-exact
// precision bonus.
func QRatio(a, b string) float64 {
	return Ratio(a, b)
}

// WordSet returns the content words of s (length > 2) as a set.
func WordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// Jaccard is intersection over union of two word sets; empty against
// empty scores zero.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
