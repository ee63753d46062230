package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	plusSpacingRe  = regexp.MustCompile(`\s*\+\s*`)
	digitLetterRe  = regexp.MustCompile(`(\d)([A-Z])`)
	letterDigitRe  = regexp.MustCompile(`([A-Z])(\d)`)
	nonWordSpaceRe = regexp.MustCompile(`[^\w\s]`)
)

// accentStripper decomposes to NFD and drops combining marks, so accented
// Portuguese text folds to plain ASCII letters.
var accentStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripAccents removes diacritical marks (SOLUÇÃO -> SOLUCAO). On a
// transform error the input is returned unchanged.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Clean standardizes free text for similarity comparison: strip accents,
// uppercase, drop everything but word characters and spaces, trim.
func Clean(s string) string {
	s = StripAccents(s)
	s = strings.ToUpper(s)
	s = nonWordSpaceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

func splitDigitsLetters(s string) string {
	s = digitLetterRe.ReplaceAllString(s, "$1 $2")
	return letterDigitRe.ReplaceAllString(s, "$1 $2")
}

type compiledSub struct {
	re   *regexp.Regexp
	repl string
}

// Normalizer applies the presentation normalization pipeline: uppercase
// and digit/letter splitting, the substitution table, the packaging
// deny-list, numeric dose-block formatting, and a final cleanup pass.
type Normalizer struct {
	tables    *Tables
	subs      []compiledSub
	syns      []compiledSub
	deny      *regexp.Regexp
	stopwords map[string]struct{}
}

// NewNormalizer compiles the table patterns up front; a Normalizer is
// safe for concurrent use afterwards.
func NewNormalizer(t *Tables) *Normalizer {
	if t == nil {
		t = DefaultTables()
	}
	n := &Normalizer{tables: t, stopwords: make(map[string]struct{}, len(t.PharmaStopwords))}
	for _, s := range t.Substitutions {
		n.subs = append(n.subs, compiledSub{re: boundary(s.Pattern), repl: s.Replacement})
	}
	quoted := make([]string, len(t.DenyWords))
	for i, w := range t.DenyWords {
		quoted[i] = regexp.QuoteMeta(w)
	}
	n.deny = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	for _, w := range t.PharmaStopwords {
		n.stopwords[w] = struct{}{}
	}
	for _, syn := range synonymOrder(t.Synonyms) {
		n.syns = append(n.syns, compiledSub{re: boundary(syn), repl: t.Synonyms[syn]})
	}
	return n
}

// ApplySynonyms rewrites commercial ingredient phrases onto the canonical
// vocabulary. Longer phrases win over their prefixes.
func (n *Normalizer) ApplySynonyms(s string) string {
	for _, sub := range n.syns {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	return collapseSpaces(s)
}

// synonymOrder sorts keys longest-first so "VITAMINA D3" is rewritten
// before "VITAMINA D" can claim its prefix.
func synonymOrder(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && (len(keys[j]) > len(keys[j-1]) ||
			(len(keys[j]) == len(keys[j-1]) && keys[j] < keys[j-1])); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// StripStopwords removes generic dose-form words so brand-distinguishing
// tokens dominate token-level comparison.
func (n *Normalizer) StripStopwords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := n.stopwords[f]; !ok {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// fusedUnits glues split compound units back together before block
// formatting runs.
var fusedUnits = []compiledSub{
	{regexp.MustCompile(`\bMGML\b`), "MG/ML"},
	{regexp.MustCompile(`\bMCGML\b`), "MCG/ML"},
	{regexp.MustCompile(`\bUIML\b`), "UI/ML"},
	{regexp.MustCompile(`\bGML\b`), "G/ML"},
}

// Presentation normalizes a CMED presentation description. composite
// marks products with more than one active ingredient, which changes how
// numeric dose blocks pair up integer and fraction tokens.
func (n *Normalizer) Presentation(text string, composite bool) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	s := plusSpacingRe.ReplaceAllString(text, " + ")
	s = strings.ToUpper(StripAccents(s))
	s = splitDigitsLetters(s)
	s = collapseSpaces(s)
	for _, sub := range n.subs {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	s = n.deny.ReplaceAllString(s, "")
	for _, fu := range fusedUnits {
		s = fu.re.ReplaceAllString(s, fu.repl)
	}
	if blockPattern.MatchString(s) {
		bolsa := bagModeRe.MatchString(s)
		po := powderModeRe.MatchString(s)
		s = formatNumericBlocks(s, composite, bolsa, po)
		s = postPass(s)
	}
	s = finalCleanup(s)
	return ExpandBlisterCartons(s)
}

var (
	bagModeRe    = regexp.MustCompile(`\bBOLSA\b|\bBOLS\b`)
	powderModeRe = regexp.MustCompile(`\bPO\b`)
)

// postSubsA runs after block formatting, up to the repeated-number
// dedupe step.
var postSubsA = []compiledSub{
	{regexp.MustCompile(`\b(MG)\s+(ML)\b`), "$1/$2"},
	{regexp.MustCompile(`\b(G)\s+(G)\b`), "$1/$2"},
	{regexp.MustCompile(`\b(MCG)\s+(ML)\b`), "$1/$2"},
	{regexp.MustCompile(`\b(MG)\s+(G)\b`), "$1/$2"},
	{regexp.MustCompile(`\b(ML)\s+(ML)\b`), "$1/$2"},
	{regexp.MustCompile(`(?i)\bAL\b`), ""},
	{regexp.MustCompile(`(?i)\bCAPSULAS GEL\b`), "CAPSULAS"},
	{regexp.MustCompile(`(?i)\bTRANS\b`), ""},
	{regexp.MustCompile(`(?i)\bEMB HOSPITALAR\b`), ""},
	{regexp.MustCompile(`(?i)\bCOPO MED\b`), "COPO"},
	{regexp.MustCompile(`(?i)\bCOPO SAB\b`), "COPO"},
	{regexp.MustCompile(`(?i)\bSEM\b\s*$`), ""},
	{regexp.MustCompile(`(?i)\bEMB\b\s*$`), ""},
	{regexp.MustCompile(`(?i)\bSIST\b\s*$`), ""},
	{regexp.MustCompile(`(?i)\bDISPOSITIVO\b\s*$`), ""},
	{regexp.MustCompile(`(?i)\bPRE ENCHIDAS\b`), "PREENCHIDAS"},
	{regexp.MustCompile(`(?i)\bPRE ENCH\b`), "PREENCHIDAS"},
	{regexp.MustCompile(`(?i)\bPORT\b.*$`), ""},
}

// postSubsB runs after the dedupe step.
var postSubsB = []compiledSub{
	{regexp.MustCompile(`(?i)\bHOSPITALAR\b`), ""},
	{regexp.MustCompile(`(?i)\b3 A SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b2 A SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b1 A SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b3 O SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b2 O SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b1 O SERIE\b`), ""},
	{regexp.MustCompile(`(?i)\b2 PLACEBOS\b`), ""},
	{regexp.MustCompile(`(?i)\bOMCILON A M\b`), ""},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS SOLUCAO\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS ORAL\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS ORODISPERSIVEIS\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS DISP\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS DISPLAY\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bBL PA\b`), "BL"},
	{regexp.MustCompile(`(?i)\bBL BL\b`), "BL"},
	{regexp.MustCompile(`(?i)\bCX BL\b`), "BL"},
	{regexp.MustCompile(`(?i)\bCART BL\b`), "BL"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS BOLSA\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bCOMPRIMIDOS SUSP\b`), "COMPRIMIDOS"},
	{regexp.MustCompile(`(?i)\bAGULHAS COMPRIMIDOS SEG\b`), ""},
	{regexp.MustCompile(`(?i)\bCOPO\b`), ""},
	{regexp.MustCompile(`(?i)\bMLSIST\b`), "ML"},
	{regexp.MustCompile(`(?i)\bPREENCHIDA\b`), "PREENCHIDAS"},
	{regexp.MustCompile(`(?i)\bFA FA\b`), "FA"},
	{regexp.MustCompile(`(?i)\bOMCILON A ORABASE\b`), ""},
	{regexp.MustCompile(`\(\s*\)`), ""},
	{regexp.MustCompile(`(?i)\bSER DOS\b`), "SER DOSAD"},
	{regexp.MustCompile(`(?i)\bORODISPERSIVEL\b`), "ORODISPERSIVEIS"},
}

func postPass(s string) string {
	for _, sub := range postSubsA {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	s = dedupeRepeatedNumbers(s)
	for _, sub := range postSubsB {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	return collapseSpaces(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// dedupeRepeatedNumbers collapses an immediately repeated numeric token
// ("10 10 ML" -> "10 ML") in a single left-to-right pass.
func dedupeRepeatedNumbers(s string) string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		out = append(out, fields[i])
		if i+1 < len(fields) && isDigits(fields[i]) && fields[i] == fields[i+1] {
			i++
		}
	}
	return strings.Join(out, " ")
}

// finalSubsA covers the cleanup rules before the slash protection step.
var finalSubsA = []compiledSub{
	{regexp.MustCompile(`(?i)\([^)]*\bEMB\b[^)]*\)`), ""},
	{regexp.MustCompile(`(?i)\bBL\s*\+\s*`), "BL "},
	{regexp.MustCompile(`(?i)\bFA\s*\+\s*FA\b`), "FA"},
	{regexp.MustCompile(`\+\s*\+`), "+"},
	{regexp.MustCompile(`\+$`), ""},
	{regexp.MustCompile(`\.\s*$`), ""},
}

// finalSubsB covers the rules between slash protection and the
// duplicate-volume removal.
var finalSubsB = []compiledSub{
	{regexp.MustCompile(`&;01`), ""},
	{regexp.MustCompile(`(?i)\bMLSABOR\b`), "ML"},
	{regexp.MustCompile(`(?i)\s*S\s+AGULHAS\b`), ""},
}

// finalSubsC runs last, in order.
var finalSubsC = []compiledSub{
	{regexp.MustCompile(`\($`), ""},
	{regexp.MustCompile(`(?i)\+\s*ACESSORIO\s*$`), ""},
	{regexp.MustCompile(`(?i)\(\s*COMPRIMIDOS\s*500\s*ML\s*\)`), ""},
	{regexp.MustCompile(`(?i)\bPVCTRANS\b`), ""},
	{regexp.MustCompile(`(?i)\bCAMA\b`), ""},
	{regexp.MustCompile(`(?i)\bMICROGRANULADO\b`), ""},
	{regexp.MustCompile(`\(\s*\+\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*ADQ\.?\s*RES\.?\s*572\s*05\s*4\s*2002\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*GRUPO\s*O\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*GRUPO\s*A\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*BRUPO\s*B\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*BRUPO\s*AB\s*\)`), ""},
	{regexp.MustCompile(`(?i)\(\s*EMBALAGEM\s*\)\s*$`), ""},
	{regexp.MustCompile(`\+\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*KIT\s*INFUS\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*COL\s*DOS\s*$`), ""},
	{regexp.MustCompile(`\)\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*1\s*APLIC\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*1\s*CAN\s*APLIC\s*$`), ""},
	{regexp.MustCompile(`(?i)X\s*1\s*APLIC\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*DOSADOR\s*$`), ""},
	{regexp.MustCompile(`(?i)\bBL\s*\d+\s*\d+\s*X\b`), "BL X"},
	{regexp.MustCompile(`(?i)\bBL\s*L\s*X\b`), "BL X"},
	{regexp.MustCompile(`(?i)\(\s*EST\s*\)`), ""},
	{regexp.MustCompile(`(?i)COMPRIMIDOS\s*FILTRO\s*$`), ""},
	{regexp.MustCompile(`(?i)\+\s*\(SAB\.\s*$`), ""},
	{regexp.MustCompile(`(?i)\bPRE\s*-\s*ENCHIDAS\b`), "PREENCHIDAS"},
	{regexp.MustCompile(`\.\.+`), ""},
	{regexp.MustCompile(`-`), ""},
}

// finalSubsD closes out after the decimal-point rewrite.
var finalSubsD = []compiledSub{
	{regexp.MustCompile(`(?i)\(\s*SR\s*\)`), ""},
	{regexp.MustCompile(`\(\s*\)`), ""},
	{regexp.MustCompile(`\+\s*$`), ""},
}

var decimalDotRe = regexp.MustCompile(`(\d)\.(\d)`)

// finalCleanup is the trailing scrub over the normalized presentation:
// stray separators, packaging leftovers, and trailing accessory phrases.
func finalCleanup(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	for _, sub := range finalSubsA {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	s = protectDoseSlashes(s)
	for _, sub := range finalSubsB {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	s = dropDuplicateVolumeParens(s)
	for _, sub := range finalSubsC {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	// Rewrite decimal points to commas; loop because matches can chain
	// ("1.2.3" needs two passes).
	for {
		next := decimalDotRe.ReplaceAllString(s, "$1,$2")
		if next == s {
			break
		}
		s = next
	}
	for _, sub := range finalSubsD {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	return collapseSpaces(s)
}

var (
	slashNumeratorRe   = regexp.MustCompile(`(?i)\b(MG|G|MCG|KG)$`)
	slashDenominatorRe = regexp.MustCompile(`(?i)^(ML|L|G|MG|MCG|KG)\b`)
)

// protectDoseSlashes turns "/" into a space unless it belongs to a dose
// ratio: preceded by a mass unit or followed by a volume/mass unit.
func protectDoseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			b.WriteByte(s[i])
			continue
		}
		if slashNumeratorRe.MatchString(s[:i]) || slashDenominatorRe.MatchString(s[i+1:]) {
			b.WriteByte('/')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

var parenVolumeRe = regexp.MustCompile(`(?i)\(\s*(\d+\s*ML)\s*\)`)

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func containsWord(s, w string) bool {
	for idx := 0; ; {
		j := strings.Index(s[idx:], w)
		if j < 0 {
			return false
		}
		j += idx
		after := j + len(w)
		if (j == 0 || !isWordByte(s[j-1])) && (after == len(s) || !isWordByte(s[after])) {
			return true
		}
		idx = j + 1
	}
}

// dropDuplicateVolumeParens removes a parenthesized volume like
// "(500 ML)" when the same volume text appears again later in the
// string.
func dropDuplicateVolumeParens(s string) string {
	matches := parenVolumeRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	pos := 0
	for _, m := range matches {
		volume := s[m[2]:m[3]]
		if containsWord(s[m[1]:], volume) {
			b.WriteString(s[pos:m[0]])
			pos = m[1]
		}
	}
	b.WriteString(s[pos:])
	return b.String()
}
