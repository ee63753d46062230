package vigency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney parses a CMED monetary cell into a nullable decimal. The
// tables mix Brazilian and anglo formatting, so when a value carries
// both "," and "." the one appearing later is the decimal separator and
// the other is a thousands separator. A value with only a comma treats
// it as the decimal separator. Anything unparseable is null, never an
// error: blank and dash cells are routine in the monthly tables.
func ParseMoney(s string) decimal.NullDecimal {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
