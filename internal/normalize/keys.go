// Package normalize turns free-text pharmaceutical fields and product
// identifiers into the canonical forms used for key lookup and
// similarity scoring.
package normalize

import "strings"

const allZeroKey = "0000000000000"

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

func zeroPad13(s string) string {
	if len(s) >= 13 {
		return s
	}
	return strings.Repeat("0", 13-len(s)) + s
}

// EAN normalizes a barcode to the canonical 13-digit EAN form. GTIN-14
// codes keep their last 13 digits; shorter codes are zero-padded. The
// all-zero code and non-numeric placeholders such as "SEM GTIN" are
// rejected.
func EAN(raw string) (string, bool) {
	s := digitsOnly(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	if len(s) == 14 {
		s = s[1:]
	}
	s = zeroPad13(s)
	if len(s) != 13 || s == allZeroKey {
		return "", false
	}
	return s, true
}

// Registration normalizes an ANVISA registration number to 13 digits,
// truncating longer codes to their first 13 digits. The truncation
// direction deliberately differs from EAN, which keeps the last 13.
func Registration(raw string) (string, bool) {
	s := digitsOnly(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	if len(s) > 13 {
		s = s[:13]
	}
	s = zeroPad13(s)
	if s == allZeroKey {
		return "", false
	}
	return s, true
}
