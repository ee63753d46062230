package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFmtDecimalDropsAllZeroFraction(t *testing.T) {
	assert.Equal(t, "5", fmtDecimal("05", "00"))
	assert.Equal(t, "5,25", fmtDecimal("5", "25"))
	assert.Equal(t, "0,5", fmtDecimal("0", "5"))
}

func TestBagPairingEvenCountLeftToRight(t *testing.T) {
	got := parseValuesBag([]string{"1", "5", "2", "25"})
	assert.Equal(t, []string{"1,5", "2,25"}, got)
}

func TestBagPairingOddCountKeepsLeadWhole(t *testing.T) {
	got := parseValuesBag([]string{"10", "2", "5"})
	assert.Equal(t, []string{"10", "2,5"}, got)
}

func TestPowderGPairsSequentially(t *testing.T) {
	got := parseValuesPowderG([]string{"1", "5", "3"})
	assert.Equal(t, []string{"1,5", "3"}, got)
}

func TestParseValuesUIWithLargeGroupStaysSplit(t *testing.T) {
	got := parseValues([]string{"5000", "10000"}, "UI", false, false, "", false, false)
	assert.Equal(t, []string{"5000", "10000"}, got)
}

func TestParseValuesUIThousandGroupsJoin(t *testing.T) {
	got := parseValues([]string{"1", "000", "000"}, "UI", false, false, "", false, false)
	assert.Equal(t, []string{"1000000"}, got)
}

func TestParseValuesSingleMilligramFraction(t *testing.T) {
	got := parseValues([]string{"2", "500"}, "MG", false, false, "", false, false)
	assert.Equal(t, []string{"2,500"}, got)
}

func TestParseValuesZeroLeadFraction(t *testing.T) {
	got := parseValues([]string{"0", "25"}, "MG", false, false, "", false, false)
	assert.Equal(t, []string{"0,25"}, got)
}

func TestFormatNumericBlocksMergesAdjacentSameUnit(t *testing.T) {
	got := formatNumericBlocks("500 MG 125 MG COMPRIMIDOS", true, false, false)
	assert.Equal(t, "(500 + 125) MG COMPRIMIDOS", got)
}

func TestFormatNumericBlocksLeavesTextWithoutUnits(t *testing.T) {
	got := formatNumericBlocks("BL X 30", false, false, false)
	assert.Equal(t, "BL X 30", got)
}
