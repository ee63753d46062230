package model

// ProductStatus classifies a product's regulatory status (TIPO DE PRODUTO).
type ProductStatus string

const (
	StatusGeneric    ProductStatus = "GENERICO"
	StatusSimilar    ProductStatus = "SIMILAR"
	StatusSpecific   ProductStatus = "ESPECIFICO"
	StatusNew        ProductStatus = "NOVO"
	StatusBiological ProductStatus = "BIOLOGICO"
	StatusUnknown    ProductStatus = ""
)

// CanonicalProduct is one drug product as registered with CMED.
// ID is derived from registration number + GGREM code so it is stable
// across re-runs regardless of row order.
type CanonicalProduct struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ActiveIngredient string        `json:"active_ingredient"`
	Laboratory       string        `json:"laboratory"`
	Presentation     string        `json:"presentation"`
	TherapeuticClass string        `json:"therapeutic_class"`
	Status           ProductStatus `json:"status"`
	Registration     string        `json:"registration"`
	GGREM            string        `json:"ggrem"`
	EAN1             string        `json:"ean1,omitempty"`
	EAN2             string        `json:"ean2,omitempty"`
	EAN3             string        `json:"ean3,omitempty"`
	Quantities       Quantities    `json:"quantities"`
}

// Quantities holds the structured numeric fields extracted from a
// presentation string. Zero means "not present" for MG/ML/UI; UnitCount
// defaults to 1 when extraction finds nothing.
type Quantities struct {
	UnitCount int     `json:"unit_count"`
	MG        float64 `json:"mg"`
	ML        float64 `json:"ml"`
	UI        float64 `json:"ui"`
}

// HasNumeric reports whether any quantity field carries a value usable
// for tolerance comparison.
func (q Quantities) HasNumeric() bool {
	return q.UnitCount > 0 || q.MG > 0 || q.ML > 0 || q.UI > 0
}

// ProductID builds the stable product identifier from its registration
// and GGREM code.
func ProductID(registration, ggrem string) string {
	return registration + "-" + ggrem
}
