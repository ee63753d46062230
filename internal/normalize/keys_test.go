package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEANKeepsLastThirteenOfGTIN14(t *testing.T) {
	got, ok := EAN("17896004700144")
	require.True(t, ok)
	assert.Equal(t, "7896004700144", got)
}

func TestEANZeroPadsShortCodes(t *testing.T) {
	got, ok := EAN("789600470014")
	require.True(t, ok)
	assert.Equal(t, "0789600470014", got)
}

func TestEANStripsNonDigits(t *testing.T) {
	got, ok := EAN(" 7896-0047.0014 4 ")
	require.True(t, ok)
	assert.Equal(t, "7896004700144", got)
}

func TestEANRejectsPlaceholders(t *testing.T) {
	for _, raw := range []string{"", "SEM GTIN", "N/A", "0000000000000", "0"} {
		_, ok := EAN(raw)
		assert.False(t, ok, "raw=%q", raw)
	}
}

func TestEANIsIdempotent(t *testing.T) {
	once, ok := EAN("17896004700144")
	require.True(t, ok)
	twice, ok := EAN(once)
	require.True(t, ok)
	assert.Equal(t, once, twice)
}

func TestRegistrationKeepsFirstThirteenDigits(t *testing.T) {
	got, ok := Registration("1023501870031999")
	require.True(t, ok)
	assert.Equal(t, "1023501870031", got)
}

func TestRegistrationStripsFormatting(t *testing.T) {
	got, ok := Registration("1.0235.0187.003-1")
	require.True(t, ok)
	assert.Equal(t, "1023501870031", got)
}

func TestRegistrationZeroPadsShortCodes(t *testing.T) {
	got, ok := Registration("102350187")
	require.True(t, ok)
	assert.Equal(t, "0000102350187", got)
}

func TestRegistrationRejectsEmptyAndAllZero(t *testing.T) {
	for _, raw := range []string{"", "sem registro", "000000000"} {
		_, ok := Registration(raw)
		assert.False(t, ok, "raw=%q", raw)
	}
}
