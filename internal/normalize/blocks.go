package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// blockPattern captures a run of integer tokens followed by a dose unit
// and an optional second unit ("2 5 MG ML" -> nums "2 5", units MG, ML).
// The alternation order mirrors the unit vocabulary and is
// leftmost-first, so MCG wins over the bare G inside it.
var blockPattern = regexp.MustCompile(
	`((?:\d+\s+){1,40})` +
		`(MG|G|MCG|ML|L|UI|MEQ|MMOL|%)` +
		`(?:\s+(MG|G|MCG|ML|L|UI|MEQ|MMOL|%))?`)

var digitRunRe = regexp.MustCompile(`\d+`)

func joinUnit(u1, u2 string) string {
	if u2 != "" {
		return u1 + "/" + u2
	}
	return u1
}

// fmtDecimal renders an integer part plus an optional fraction with a
// decimal comma. All-zero fractions collapse to the bare integer.
func fmtDecimal(intPart, frac string) string {
	v, err := strconv.Atoi(intPart)
	if err != nil {
		intPart = "0"
	} else {
		intPart = strconv.Itoa(v)
	}
	if frac == "" || strings.Trim(frac, "0") == "" {
		return intPart
	}
	return intPart + "," + frac
}

// parseValuesPowderG pairs tokens left to right into decimals for G
// blocks of powder presentations, where "1 5 G" means 1,5 G.
func parseValuesPowderG(nums []string) []string {
	out := make([]string, 0, (len(nums)+1)/2)
	for i := 0; i < len(nums); {
		if i+1 < len(nums) {
			out = append(out, fmtDecimal(nums[i], nums[i+1]))
			i += 2
			continue
		}
		out = append(out, fmtDecimal(nums[i], ""))
		i++
	}
	return out
}

// parseValuesBag handles MG/ML blocks of infusion bags. An even token
// count pairs left to right; an odd count pairs right to left, leaving
// the first token as a whole number.
func parseValuesBag(nums []string) []string {
	n := len(nums)
	if n == 0 {
		return nil
	}
	out := make([]string, 0, (n+1)/2)
	if n%2 == 0 {
		for i := 0; i < n; i += 2 {
			out = append(out, fmtDecimal(nums[i], nums[i+1]))
		}
		return out
	}
	var acc []string
	for i := n - 1; i > 0; i -= 2 {
		acc = append(acc, fmtDecimal(nums[i-1], nums[i]))
	}
	out = append(out, fmtDecimal(nums[0], ""))
	for i := len(acc) - 1; i >= 0; i-- {
		out = append(out, acc[i])
	}
	return out
}

// parseValues reassembles the integer tokens of a dose block into
// decimal values. Which tokens are fraction parts depends on the unit
// pair, whether the product has multiple active ingredients (composite),
// and the bag/powder presentation modes.
func parseValues(nums []string, unit1 string, dualUnit, composite bool, unit2 string, bagMode, powderMode bool) []string {
	if bagMode && dualUnit && unit1 == "MG" && unit2 == "ML" {
		return parseValuesBag(nums)
	}
	if powderMode && !dualUnit && unit1 == "G" {
		return parseValuesPowderG(nums)
	}

	// UI doses split on thousands groups: "1 000 000 UI" is one value,
	// but "5000 10000 UI" is two.
	if unit1 == "UI" {
		if len(nums) > 1 {
			for _, v := range nums {
				if len(v) >= 4 {
					return nums
				}
			}
		}
		return []string{strings.Join(nums, "")}
	}

	isMGML := dualUnit && unit1 == "MG" && unit2 == "ML"
	isMGG := dualUnit && unit1 == "MG" && unit2 == "G"

	var out []string
	i, n := 0, len(nums)
	for i < n {
		a := nums[i]
		i++
		frac := ""

		switch {
		case composite && dualUnit:
			if isMGML && i < n {
				b := nums[i]
				if len(a) == 1 && len(b) >= 1 && len(b) <= 3 {
					if len(b) > 2 {
						frac = b[:2]
					} else {
						frac = b
					}
					i++
				} else if len(a) >= 2 && len(b) >= 1 && len(b) <= 2 && b != "10" {
					frac = b
					i++
				}
			} else if isMGG && i < n {
				b := nums[i]
				if len(b) >= 1 && len(b) <= 2 {
					frac = b
					i++
				}
			}

		case !dualUnit && unit1 == "MG" && len(a) == 1 && i < n && len(nums[i]) == 3:
			frac = nums[i]
			i++

		case !dualUnit && unit1 == "MG" && composite && i < n && nums[i] == "10" && len(a) >= 2:
			// "20 10 MG" style artifacts: keep the leading value whole
			// and leave the 10 for the next iteration.
			out = append(out, fmtDecimal(a, ""))
			continue

		case strings.Trim(a, "0") == "":
			if i < n {
				cand := nums[i]
				if composite && !dualUnit && unit1 == "G" && len(cand) >= 3 && len(cand) <= 4 {
					v, _ := strconv.Atoi(cand)
					out = append(out, strconv.Itoa(v))
					i++
					continue
				}
				if len(cand) >= 1 && len(cand) <= 5 {
					frac = cand
					i++
				}
			}

		default:
			if i < n && len(nums[i]) >= 1 && len(nums[i]) <= 2 {
				if nums[i] == "0" && i+1 < n {
					frac = "0"
					i++
				} else {
					frac = nums[i]
					i++
				}
			}
		}

		out = append(out, fmtDecimal(a, frac))
	}
	return out
}

func formatBlock(numsRaw, u1, u2 string, composite, bagMode, powderMode bool) ([]string, string) {
	nums := digitRunRe.FindAllString(numsRaw, -1)
	unit := joinUnit(u1, u2)
	values := parseValues(nums, u1, u2 != "", composite, u2, bagMode, powderMode)
	return values, unit
}

// formatNumericBlocks rewrites every dose block in s as formatted
// values. For composite products, adjacent blocks with the same unit and
// no text between them merge into one "(a + b) UNIT" group.
func formatNumericBlocks(s string, composite, bagMode, powderMode bool) string {
	matches := blockPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	group := func(m []int, g int) string {
		if m[2*g] < 0 {
			return ""
		}
		return s[m[2*g]:m[2*g+1]]
	}

	var b strings.Builder
	pos := 0
	for k := 0; k < len(matches); {
		m := matches[k]
		b.WriteString(s[pos:m[0]])

		values, unit := formatBlock(group(m, 1), group(m, 2), group(m, 3), composite, bagMode, powderMode)
		endSpan := m[1]
		kNext := k + 1

		if composite {
			for kNext < len(matches) {
				m2 := matches[kNext]
				if strings.TrimSpace(s[endSpan:m2[0]]) != "" {
					break
				}
				values2, unit2 := formatBlock(group(m2, 1), group(m2, 2), group(m2, 3), composite, bagMode, powderMode)
				if unit2 != unit {
					break
				}
				values = append(values, values2...)
				endSpan = m2[1]
				kNext++
			}
		}

		if len(values) == 1 {
			b.WriteString(values[0] + " " + unit)
		} else {
			b.WriteString("(" + strings.Join(values, " + ") + ") " + unit)
		}
		pos = endSpan
		k = kNext
	}
	b.WriteString(s[pos:])
	return collapseSpaces(b.String())
}

var cartonBlisterRe = regexp.MustCompile(`(?i)\bCX\s*(\d+)\s*BL\s*X\s*(\d+)\b`)

// ExpandBlisterCartons folds carton-of-blisters counts into a single
// blister count: "CX 250 BL X 4" becomes "BL X 1000".
func ExpandBlisterCartons(s string) string {
	return cartonBlisterRe.ReplaceAllStringFunc(s, func(m string) string {
		g := cartonBlisterRe.FindStringSubmatch(m)
		cartons, _ := strconv.Atoi(g[1])
		per, _ := strconv.Atoi(g[2])
		return "BL X " + strconv.Itoa(cartons*per)
	})
}
