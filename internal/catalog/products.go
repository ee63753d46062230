package catalog

import (
	"sort"
	"strings"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/quantity"
)

// BuildProducts collapses the snapshot series into the canonical
// product catalog. Text attributes come from each product's most recent
// snapshot so renamed labs and reworded presentations read consistently
// across the whole history. The presentation is normalized and its
// numeric attributes extracted here, once, since every matching stage
// reads them.
func BuildProducts(snaps []model.PriceSnapshot, norm *normalize.Normalizer) []model.CanonicalProduct {
	latest := make(map[string]model.PriceSnapshot, len(snaps))
	for _, s := range snaps {
		prev, ok := latest[s.ProductID]
		if !ok || s.ReferenceDate.After(prev.ReferenceDate) {
			latest[s.ProductID] = s
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products := make([]model.CanonicalProduct, 0, len(ids))
	for _, id := range ids {
		s := latest[id]
		composite := strings.Contains(s.ActiveIngredient, "+")
		presentation := norm.Presentation(s.Presentation, composite)
		q, _ := quantity.Extract(presentation)
		products = append(products, model.CanonicalProduct{
			ID:               s.ProductID,
			Name:             strings.ToUpper(strings.TrimSpace(s.Name)),
			ActiveIngredient: strings.ToUpper(strings.TrimSpace(s.ActiveIngredient)),
			Laboratory:       strings.ToUpper(strings.TrimSpace(s.Laboratory)),
			Presentation:     presentation,
			TherapeuticClass: strings.ToUpper(strings.TrimSpace(s.TherapeuticClass)),
			Status:           s.Status,
			Registration:     strings.TrimSpace(s.Registration),
			GGREM:            strings.TrimSpace(s.GGREM),
			EAN1:             strings.TrimSpace(s.EAN1),
			EAN2:             strings.TrimSpace(s.EAN2),
			EAN3:             strings.TrimSpace(s.EAN3),
			Quantities:       q,
		})
	}
	return products
}
