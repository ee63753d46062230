package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioIdenticalAndEmpty(t *testing.T) {
	assert.Equal(t, 100.0, Ratio("DIPIRONA", "DIPIRONA"))
	assert.Equal(t, 100.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("DIPIRONA", ""))
}

func TestRatioScalesWithEditDistance(t *testing.T) {
	// One substitution over eight runes.
	got := Ratio("DIPIRONA", "DIPIRONE")
	assert.InDelta(t, 87.5, got, 0.01)
}

func TestTokenSortRatioIgnoresWordOrder(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("SODICA DIPIRONA", "DIPIRONA SODICA"))
}

func TestTokenSetRatioIgnoresExtraTokens(t *testing.T) {
	// The shared core matches one side completely.
	assert.Equal(t, 100.0, TokenSetRatio("DIPIRONA SODICA 500", "DIPIRONA"))
}

func TestWordSetKeepsContentWords(t *testing.T) {
	set := WordSet("AB DIPIRONA 500 ML")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "DIPIRONA")
	assert.Contains(t, set, "500")
}

func TestJaccardOverlap(t *testing.T) {
	a := WordSet("DIPIRONA SODICA")
	b := WordSet("DIPIRONA MONOIDRATADA")
	assert.InDelta(t, 1.0/3.0, Jaccard(a, b), 1e-9)
	assert.Equal(t, 0.0, Jaccard(WordSet(""), WordSet("")))
}
