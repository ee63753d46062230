package matcher

import (
	"sort"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
)

// entry is a catalog product with its matching attributes precomputed:
// cleaned text, stopword-stripped variants, and the content word set.
type entry struct {
	product            *model.CanonicalProduct
	cleanName          string
	cleanIngredient    string
	cleanLab           string
	nameSpecific       string
	ingredientSpecific string
	wordSet            map[string]struct{}
}

// CandidateIndex supports the cascade's lookups over the canonical
// catalog: exact keys (EAN slots, registration), name joins, and an
// inverted word index for fuzzy candidate retrieval. Read-only once
// built, safe for concurrent queries.
type CandidateIndex struct {
	entries []entry

	ean1         map[string][]int
	ean2         map[string][]int
	ean3         map[string][]int
	registration map[string][]int
	byCleanName  map[string][]int

	nameWords       map[string][]int
	ingredientWords map[string][]int

	// uniqueName holds clean names whose product has exactly one
	// distinct presentation across the catalog, mapped to the first
	// entry carrying it.
	uniqueName map[string]int
}

// NewCandidateIndex builds the index. Products are held by reference;
// the slice must not be mutated afterwards.
func NewCandidateIndex(products []model.CanonicalProduct, norm *normalize.Normalizer) *CandidateIndex {
	ix := &CandidateIndex{
		entries:         make([]entry, 0, len(products)),
		ean1:            make(map[string][]int),
		ean2:            make(map[string][]int),
		ean3:            make(map[string][]int),
		registration:    make(map[string][]int),
		byCleanName:     make(map[string][]int),
		nameWords:       make(map[string][]int),
		ingredientWords: make(map[string][]int),
		uniqueName:      make(map[string]int),
	}

	namePresentations := make(map[string]map[string]struct{})
	nameFirst := make(map[string]int)

	for i := range products {
		p := &products[i]
		cleanName := norm.ApplySynonyms(normalize.Clean(p.Name))
		cleanIngredient := norm.ApplySynonyms(normalize.Clean(p.ActiveIngredient))
		cleanLab := normalize.Clean(p.Laboratory)

		e := entry{
			product:            p,
			cleanName:          cleanName,
			cleanIngredient:    cleanIngredient,
			cleanLab:           cleanLab,
			nameSpecific:       norm.StripStopwords(cleanName),
			ingredientSpecific: norm.StripStopwords(cleanIngredient),
			wordSet:            WordSet(cleanName),
		}
		idx := len(ix.entries)
		ix.entries = append(ix.entries, e)

		// Catalog rows carry EANs and registrations as loosely as the
		// invoices do (short codes, GTIN-14, punctuation), so both sides
		// of the exact-key join go through the same canonicalization.
		if ean, ok := normalize.EAN(p.EAN1); ok {
			ix.ean1[ean] = append(ix.ean1[ean], idx)
		}
		if ean, ok := normalize.EAN(p.EAN2); ok {
			ix.ean2[ean] = append(ix.ean2[ean], idx)
		}
		if ean, ok := normalize.EAN(p.EAN3); ok {
			ix.ean3[ean] = append(ix.ean3[ean], idx)
		}
		if reg, ok := normalize.Registration(p.Registration); ok {
			ix.registration[reg] = append(ix.registration[reg], idx)
		}
		ix.byCleanName[cleanName] = append(ix.byCleanName[cleanName], idx)

		for w := range e.wordSet {
			ix.nameWords[w] = append(ix.nameWords[w], idx)
		}
		for w := range WordSet(cleanIngredient) {
			ix.ingredientWords[w] = append(ix.ingredientWords[w], idx)
		}

		pres, ok := namePresentations[cleanName]
		if !ok {
			pres = make(map[string]struct{})
			namePresentations[cleanName] = pres
			nameFirst[cleanName] = idx
		}
		pres[p.Presentation] = struct{}{}
	}

	for name, pres := range namePresentations {
		if len(pres) == 1 {
			ix.uniqueName[name] = nameFirst[name]
		}
	}
	return ix
}

// Len reports the number of indexed products.
func (ix *CandidateIndex) Len() int { return len(ix.entries) }

func (ix *CandidateIndex) first(m map[string][]int, key string) *model.CanonicalProduct {
	if key == "" {
		return nil
	}
	idxs := m[key]
	if len(idxs) == 0 {
		return nil
	}
	return ix.entries[idxs[0]].product
}

// ByEAN1 looks up the primary EAN slot; multiple hits resolve to the
// first catalog row, keeping re-runs deterministic.
func (ix *CandidateIndex) ByEAN1(key string) *model.CanonicalProduct { return ix.first(ix.ean1, key) }

// ByEAN2 looks up the secondary EAN slot.
func (ix *CandidateIndex) ByEAN2(key string) *model.CanonicalProduct { return ix.first(ix.ean2, key) }

// ByEAN3 looks up the tertiary EAN slot.
func (ix *CandidateIndex) ByEAN3(key string) *model.CanonicalProduct { return ix.first(ix.ean3, key) }

// ByRegistration looks up the normalized registration number.
func (ix *CandidateIndex) ByRegistration(key string) *model.CanonicalProduct {
	return ix.first(ix.registration, key)
}

// ByCleanName returns every product whose cleaned name equals key.
func (ix *CandidateIndex) ByCleanName(key string) []*model.CanonicalProduct {
	idxs := ix.byCleanName[key]
	out := make([]*model.CanonicalProduct, len(idxs))
	for i, idx := range idxs {
		out[i] = ix.entries[idx].product
	}
	return out
}

// UniquePresentation returns the product for a clean name that has
// exactly one distinct presentation in the catalog, or nil.
func (ix *CandidateIndex) UniquePresentation(name string) *model.CanonicalProduct {
	idx, ok := ix.uniqueName[name]
	if !ok {
		return nil
	}
	return ix.entries[idx].product
}

// candidates unions the inverted-index postings for the query words over
// both the name and ingredient indexes. The result is sorted so scoring
// iterates in catalog order.
func (ix *CandidateIndex) candidates(words map[string]struct{}) []int {
	seen := make(map[int]struct{})
	for w := range words {
		for _, idx := range ix.nameWords[w] {
			seen[idx] = struct{}{}
		}
		for _, idx := range ix.ingredientWords[w] {
			seen[idx] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
