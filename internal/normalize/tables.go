package normalize

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Substitution rewrites one abbreviation or data-quality artifact. The
// pattern is applied on word boundaries, in table order, so multi-word
// patterns must come before any single-word pattern they contain.
type Substitution struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Tables bundles the normalization data artifacts: the presentation
// substitution table, the packaging deny-list, ingredient synonyms, and
// the pharma stopword set used for "specific" text. They are data, not
// code: hand-tuned against the CMED tables and replaceable via YAML.
type Tables struct {
	Substitutions   []Substitution `yaml:"substitutions"`
	DenyWords       []string       `yaml:"deny_words"`
	Synonyms        map[string]string `yaml:"synonyms"`
	PharmaStopwords []string       `yaml:"pharma_stopwords"`
}

// LoadTables reads a Tables artifact from a YAML file.
func LoadTables(path string) (*Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read tables file")
	}
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, eris.Wrap(err, "normalize: unmarshal tables")
	}
	return &t, nil
}

// DefaultTables returns the tables tuned against the CMED presentation
// vocabulary.
func DefaultTables() *Tables {
	return &Tables{
		Substitutions:   defaultSubstitutions,
		DenyWords:       defaultDenyWords,
		Synonyms:        defaultSynonyms,
		PharmaStopwords: defaultPharmaStopwords,
	}
}

// defaultSynonyms maps commercial ingredient names onto the canonical
// active-ingredient vocabulary used by the regulator.
var defaultSynonyms = map[string]string{
	"VITAMINA C":  "ACIDO ASCORBICO",
	"VITAMINA K":  "FITOMENADIONA",
	"VITAMINA D":  "COLECALCIFEROL",
	"VITAMINA D3": "COLECALCIFEROL",
	"VITAMINA A":  "RETINOL",
	"VITAMINA E":  "ACETATO DE RACEALFATOCOFEROL",
	"RING":        "RINGER",
	"SORO":        "SOLUCAO",
}

// defaultPharmaStopwords are generic dose-form words stripped before the
// token-sort comparison so that brand-distinguishing words dominate.
var defaultPharmaStopwords = []string{
	"SOLUCAO", "INJETAVEL", "LACTATO", "MG", "ML", "G", "UI", "MCG",
	"COM", "DE", "DO", "DA", "FRASCO", "CAIXA", "AMPOLA", "BISNAGA",
	"GOTAS", "REV", "LIB", "PROL", "SISTEMA", "FECHADO", "SIMPLES",
}

// defaultSubstitutions expands packaging abbreviations and fixes known
// one-off data errors in the source tables. Multi-word patterns precede
// the single-word expansions they overlap with.
var defaultSubstitutions = []Substitution{
	{`AGU DESC COM SIST SEG`, ``},
	{`COM SIST SEGURANCA`, ``},
	{`COM SIST SEG`, ``},
	{`0 05 MG`, `50 MCG`},
	{`0 075 MG`, `75 MCG`},
	{`BISN COM 20 G`, `BG X 20 G`},
	{`5 631`, `5,631`},
	{`X 14 14 28`, `X 56`},
	{`X 20 10 40`, `X 70`},
	{`X 28 14 42`, `X 84`},
	{`X 56 28 42`, `X 126`},
	{`X 28 24 4`, `X 56`},
	{`X 84 72 12`, `X 168`},
	{`1 G`, `1000 MG`},
	{`24 H`, ``},
	{`SEM ACUCAR`, ``},
	{`S ACUCAR`, ``},
	{`7 LUVAS`, ``},
	{`14 DEDEIRAS`, ``},
	{`2 DEDEIRAS`, ``},
	{`4 COM PLACEBO`, ``},
	{`7 PLACEBOS`, ``},
	{`21 PLACEBOS`, ``},
	{`12 PLACEBOS`, ``},
	{`12 PLACEBO`, ``},
	{`4 PLACEBOS`, ``},
	{`4 PLACEBO`, ``},
	{`6 PLACEBOS`, ``},
	{`8 PLACEBOS`, ``},
	{`50 COP`, ``},
	{`24 COP`, ``},
	{`96 COP`, ``},
	{`48 COP`, ``},
	{`25 COP`, ``},
	{`COM 2 MMOL`, `CONTENDO 2 MMOL`},
	{`1 PORTA COMPRIMIDO`, ``},
	{`AGU DISPOSITIVO DE SEGURANCA`, ``},
	{`SEM AGU`, ``},
	{`NBSP 01`, ``},
	{`EST AMP`, `AMP`},
	{`04`, `4`},
	{`CRE`, `CREME`},
	{`CREM`, `CREME`},
	{`SOL`, `SOLUCAO`},
	{`COM`, `COMPRIMIDOS`},
	{`CPD`, `COMPRIMIDOS`},
	{`COMP`, `COMPRIMIDOS`},
	{`CAP`, `CAPSULAS`},
	{`CP`, `COPO`},
	{`COP`, `COPO`},
	{`DER`, `DERM`},
	{`OF`, `OFT`},
	{`FRGOT`, `FR`},
	{`STR`, `STRIP`},
	{`CAPS`, `CAPSULAS`},
	{`BOMB`, `BOMBO`},
	{`HOSP`, `HOSPITALAR`},
	{`PREENC`, `PREENCHIDAS`},
	{`PREENCH`, `PREENCHIDAS`},
	{`MICROG`, `MICROGRANULADO`},
	{`MCGRAN`, `MICROGRANULADO`},
	{`MGGRAN`, `MICROGRANULADO`},
	{`MGRAN`, `MICROGRANULADO`},
	{`DRG`, `COMPRIMIDOS`},
	{`SAC`, `SACHES`},
	{`POM`, `POMADA`},
	{`ALX`, `AL X`},
	{`SACH`, `SACHES`},
	{`SACHE`, `SACHES`},
	{`INAL`, `INALADOR`},
	{`ORODISPERS`, `ORODISPERSIVEL`},
	{`ORODISP`, `ORODISPERSIVEL`},
	{`SPR`, `SPRAY`},
	{`ACION`, `ACIONAMENTOS`},
	{`ATOMIZACOES`, `ACIONAMENTOS`},
	{`OR`, `ORAL`},
	{`SUS`, `SUSP`},
	{`CAPI`, `CAPILAR`},
	{`CAPIL`, `CAPILAR`},
	{`CAPILA`, `CAPILAR`},
	{`BOLS`, `BOLSA`},
	{`NAS`, `NASAL`},
	{`APL`, `APLIC`},
	{`GCREM`, `G CREME`},
	{`XAMP`, `XAMP`},
	{`SHAMP`, `XAMP`},
	{`PAST`, `PASTILHA`},
	{`PAS`, `PASTILHA`},
	{`TB`, `TUBO`},
	{`CAR`, `CARP`},
	{`AGU`, `AGULHAS`},
	{`AG`, `AGULHAS`},
	{`CR`, `CREME`},
	{`GIN`, `GINEC`},
	{`PRENC`, `PREENCHIDAS`},
	{`TRANSX`, `TRANS X`},
}

// defaultDenyWords are packaging, flavor, and material descriptors that
// carry no matching signal and are removed outright.
var defaultDenyWords = []string{
	"PVC", "ACLAR", "TRANS", "PVDC", "NBSP", "MOLE", "DURA", "SABOR",
	"REV", "PEAD", "SBR", "GUARANA", "EVOH", "TRNS", "PLASC", "SISTEMA",
	"SEGURANCA", "HD", "PLACEBO", "PP", "LIMAO", "MORANGO", "CONECTOR",
	"ABACAXI", "BRANCO", "LAMIN", "DESCART", "MENTA", "FRAC", "CALEND",
	"BCO", "LEIT", "CGT", "NATURAL", "PCTFE", "LARANJA", "TUTTI",
	"FRUTTI", "PEBD", "TRANSP", "INC", "AMB", "POLIET", "OPC", "PE",
	"PAP", "ACUCAR", "FLUROTEC", "TAMPA", "VALV", "POLF", "FLEX",
	"TRANSL", "LIB", "RETARD", "CAMOMILA", "MEL", "E", "PROL", "DESSEC",
	"LEITOSO", "DE", "UVA", "FRAMBOESA", "EQP", "PET", "TRANSLUCIDO",
	"TANGERINA", "DESSECANTE", "BAUNILHA", "CEREJA", "FRUTAS",
	"VERMELHAS", "BANANA", "AMBX", "MOD", "TRANSF", "PLAS", "AL",
	"POLIOF", "P", "PESSEGO", "OPACO", "PINA", "COLADA", "PLANS", "MAST",
	"HDPE", "RESPIMAT", "DAMASCO", "MAMAO", "CASSIS", "ABAXAXI", "VD",
	"EFEV", "AMEIXA", "SALADA", "ALUMINIO", "FLOW", "PACK", "APOS",
	"RECONSTITUICAO", "FLEXPRO", "FLTR", "C", "PLAST", "EFERV", "SUBL",
	"DUR", "RESERVATORIO", "HF", "ENCAP", "OPA", "OPAC", "ALU", "III",
	"AP", "ADAPTADOR", "BIOFINA", "EXTEMP", "BJ", "EPI", "COLUT",
	"LENTA", "GRAD", "LARANJ", "LAM", "KRAFT", "DP", "LAR", "TRANSD",
	"REC", "SC", "CANELA", "MACA", "CAMARA", "TRIPLA", "ESTERIL",
	"TRIP", "BIP", "DUPLO", "AD", "TP", "BR", "POLIESTER", "PAPEL",
	"LONG", "CONTROL", "SECO", "PL", "CAPAC", "SUB", "LING", "ACD",
	"DREN", "EQ", "FLEXPEN", "ADU", "PED", "DUPLA", "CAM", "PROG",
	"DEPOT", "II", "FLEXTOUCH", "VC", "HORTELA", "MULTIPLA", "MULTI",
	"MULT", "COCO", "COC", "ACO", "INOX", "ESPATULA", "MONODOSE",
	"PENFILL", "PROTECAO", "CTG", "EXTENSOR", "APOIO", "DOSIF",
	"ORODISPERSIVEL", "RETRATIL", "IAR", "NOVOFINE", "EPOXI", "FENOLICO",
	"OURO", "TRILAMINADA", "EUCALIPTO", "REFRESCANTE", "TONICA", "ADAPT",
	"MENTOL", "ACIDO", "ACETILSALICILICO", "ANIS", "DESC", "DES", "REST",
	"HOSPITALAR", "ESTEREIS", "ESPAC", "JET", "USO", "PROFISSIONAL",
	"ULTRASAFE", "PASSIVE", "EXTENSORES", "GANGAN", "UNOPEN", "INCOLOR",
	"BRANC", "CONTI", "MARACUJA", "SIST", "FECH", "PLASTICA", "CONT",
	"REMOVIVEL", "CONTROLADA", "PROLONG", "IA", "DESINT", "LENT",
	"CTFE", "LIOF", "INF", "CT", "POTASSIO", "ACEROLA", "DISKUS",
	"PEHD", "PEQUENO", "FECHADO", "SUCRALOSE", "PAPAYA", "MATRICIAL",
	"EXT", "PREP", "CALENDARIO", "MOLA", "OCUMETRO", "GOT", "PEBDL",
	"REVES", "REVE", "MINIMICROESFERAS", "GENGIBRE", "ROMA", "ADVANCE",
	"DIL", "MARROM", "BACTERIOSTATICO", "CONTR", "REVCT", "BLAL",
	"RETARDAD", "I", "TIPO", "POLIETILENO", "PES", "MEDIDA", "MED",
	"MEDIDOR", "PLASTRANS", "TRANP", "PLASP", "GOM", "POLI", "DIET",
	"REMOV", "CHOCOLATE", "COLA", "TRADICIONAL", "FILME", "POLIEST",
	"BOCAL", "DISSOL", "INST", "CIL", "EXP", "POLIPROPILENO", "TAM",
	"GRANDE", "SIS", "PAN", "ITRAQ", "IMEDU", "INERTE", "CARTOLINA",
	"ENVOL", "VER", "PLAC", "VDC", "OROD", "ESTOJO", "TRP", "COMPART",
	"CRISTAL", "MIP", "LEI", "VDE", "HPDE", "PALNS",
}

// boundary compiles a case-sensitive word-boundary pattern for a
// literal phrase.
func boundary(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
}
