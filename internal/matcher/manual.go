package matcher

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DescriptionRule resolves known hard cases: when every pattern appears
// in the raw invoice description, the line is forced onto the named
// catalog product (commercial names that never appear in the
// description, e.g. ENOXAPARINA sold by CRISTALIA is HEPARINOX).
type DescriptionRule struct {
	Patterns []string `yaml:"patterns"`
	Product  string   `yaml:"product"`
}

// ManualTable is the maintained reference artifact for the manual
// stage: description rules, a correction dictionary of reviewed name
// fixes, and the non-pharmaceutical deny-list.
type ManualTable struct {
	Rules       []DescriptionRule `yaml:"rules"`
	Corrections map[string]string `yaml:"corrections"`
	NonPharma   []string          `yaml:"non_pharma"`
}

// LoadManualTable reads a ManualTable from a YAML file.
func LoadManualTable(path string) (*ManualTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "matcher: read manual table")
	}
	var t ManualTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, eris.Wrap(err, "matcher: unmarshal manual table")
	}
	return &t, nil
}

// DefaultManualTable returns the built-in rules and deny-list.
func DefaultManualTable() *ManualTable {
	return &ManualTable{
		Rules: []DescriptionRule{
			{Patterns: []string{"ENOXAPARINA", "CRISTALIA"}, Product: "HEPARINOX"},
			{Patterns: []string{"ENOXAPARINA", "BLAU"}, Product: "ENOXALOW"},
			{Patterns: []string{"ENOXAPARINA", "MYLAN"}, Product: "HEPTRIS"},
			{Patterns: []string{"ENOXAPARINA", "EURO"}, Product: "VERSA"},
			{Patterns: []string{"HEPTRIS"}, Product: "HEPTRIS"},
			{Patterns: []string{"ACALABRUTINIBE"}, Product: "CALQUENCE"},
		},
		Corrections: map[string]string{},
		NonPharma: []string{
			"OLEO MINERAL", "ULTRASSONOGRAFIA", "DIAGNOSTICOS", "ESPIROMETRIA",
			"ENDOTRAQUEAIS", "ULTRASOM", "LOCACAO", "SUPORTE", "AGUA OXIGENADA",
			"LIMPEZA", "LIVRO", "SHERLOCK", "ELETROCARDIOGRAMA", "ELETROCARDIOGRAFO",
			"VASELINA", "DELETAR", "PVPI ", "ALVEJANTE", "LIDOVET", "DOXINEW",
			"ZELOTRIL ", "VITAKA ", "QUINOLON ", "IVERMIN ", "DEXACORT", "BIOXAN COMPOSTO",
		},
	}
}

// IsNonPharma reports whether the cleaned name matches the
// non-pharmaceutical deny-list (veterinary lines, cleaning supplies,
// diagnostic services).
func (t *ManualTable) IsNonPharma(name string) bool {
	if name == "" {
		return false
	}
	for _, pattern := range t.NonPharma {
		if strings.Contains(name, strings.TrimSpace(strings.ToUpper(pattern))) {
			return true
		}
	}
	return false
}

// RewriteName applies the description rules and the correction
// dictionary to a cleaned product name, returning the possibly replaced
// name.
func (t *ManualTable) RewriteName(name, description string) string {
	desc := strings.ToUpper(description)
	for _, rule := range t.Rules {
		all := true
		for _, p := range rule.Patterns {
			if !strings.Contains(desc, strings.ToUpper(p)) {
				all = false
				break
			}
		}
		if all {
			return rule.Product
		}
	}
	if fixed, ok := t.Corrections[name]; ok {
		return fixed
	}
	return name
}
