package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchProvenance records which cascade stage resolved a line item.
type MatchProvenance string

const (
	ProvenanceNone     MatchProvenance = ""
	ProvenanceEAN1     MatchProvenance = "ean1"
	ProvenanceEAN2     MatchProvenance = "ean2"
	ProvenanceEAN3     MatchProvenance = "ean3"
	ProvenanceReg      MatchProvenance = "reg"
	ProvenanceUnique   MatchProvenance = "unique_presentation"
	ProvenanceFuzzy    MatchProvenance = "fuzzy"
	ProvenanceManual   MatchProvenance = "manual"
	ProvenanceAI       MatchProvenance = "ai"
	ProvenanceFiltered MatchProvenance = "filtered_non_pharma"
)

// InvoiceLineItem is one line of an electronic tax invoice (NFe).
// Candidates and Provenance are populated by the match cascade; once
// Provenance is set no later stage may change it.
type InvoiceLineItem struct {
	Description  string          `csv:"descricao_produto" json:"description"`
	EAN          string          `csv:"codigo_ean" json:"ean,omitempty"`
	Registration string          `csv:"cod_anvisa" json:"registration,omitempty"`
	EmissionDate time.Time       `csv:"data_emissao" json:"emission_date"`
	UnitValue    decimal.Decimal `csv:"valor_unitario" json:"unit_value"`
	Quantity     float64         `csv:"quantidade" json:"quantity"`
	Issuer       string          `csv:"razao_social_emitente" json:"issuer,omitempty"`
	ManufDate    string          `csv:"id_data_fabricacao" json:"-"`
	ExpiryDate   string          `csv:"id_data_validade" json:"-"`

	// Matching state, owned by the cascade.
	Candidates []string        `csv:"-" json:"candidates,omitempty"`
	ProductID  string          `csv:"-" json:"product_id,omitempty"`
	Provenance MatchProvenance `csv:"-" json:"provenance,omitempty"`

	// Derived attributes used by the fuzzy stage.
	CleanName  string     `csv:"-" json:"-"`
	CleanLab   string     `csv:"-" json:"-"`
	Quantities Quantities `csv:"-" json:"-"`
	MatchScore float64    `csv:"-" json:"match_score,omitempty"`
}

// Resolved reports whether a cascade stage already matched this item.
func (li *InvoiceLineItem) Resolved() bool {
	return li.Provenance != ProvenanceNone
}

// Resolve records a match. It is a no-op when the item is already
// resolved, which keeps provenance monotonic across stages.
func (li *InvoiceLineItem) Resolve(productID string, candidates []string, via MatchProvenance) {
	if li.Resolved() {
		return
	}
	li.ProductID = productID
	li.Candidates = candidates
	li.Provenance = via
}
