package vigency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

func testResolver() *Resolver {
	return NewResolver([]model.PriceInterval{
		{
			PriceID:   "A_20230101",
			ProductID: "A",
			Start:     day(2023, time.January, 1),
			End:       day(2023, time.February, 28),
			PF0:       money("10.00"),
			PF20:      money("12.50"),
		},
		{
			PriceID:   "A_20230301",
			ProductID: "A",
			Start:     day(2023, time.March, 1),
			End:       day(2023, time.April, 15),
			PF0:       money("12.00"),
			PF20:      money("15.00"),
		},
		{
			PriceID:   "B_20220101",
			ProductID: "B",
			Start:     day(2022, time.January, 1),
			End:       day(2022, time.April, 15),
			PF20:      money("30.00"),
		},
	})
}

func TestAsOfSelectsCoveringInterval(t *testing.T) {
	r := testResolver()

	pi, ok := r.AsOf("A", day(2023, time.February, 10))
	require.True(t, ok)
	assert.Equal(t, "A_20230101", pi.PriceID)

	pi, ok = r.AsOf("A", day(2023, time.March, 1))
	require.True(t, ok)
	assert.Equal(t, "A_20230301", pi.PriceID)
}

func TestAsOfIncludesBoundaries(t *testing.T) {
	r := testResolver()

	pi, ok := r.AsOf("A", day(2023, time.January, 1))
	require.True(t, ok)
	assert.Equal(t, "A_20230101", pi.PriceID)

	pi, ok = r.AsOf("A", day(2023, time.February, 28))
	require.True(t, ok)
	assert.Equal(t, "A_20230101", pi.PriceID)
}

func TestAsOfGapReportsNoPrice(t *testing.T) {
	r := testResolver()

	_, ok := r.AsOf("A", day(2022, time.December, 31))
	assert.False(t, ok)

	// Past the synthetic deadline without a newer filing.
	_, ok = r.AsOf("A", day(2023, time.May, 1))
	assert.False(t, ok)
}

func TestAsOfOpenIntervalCoversAnyLaterDate(t *testing.T) {
	r := NewResolver([]model.PriceInterval{{
		PriceID:   "C_20230601",
		ProductID: "C",
		Start:     day(2023, time.June, 1),
		PF20:      money("7.00"),
	}})

	_, ok := r.AsOf("C", day(2030, time.January, 1))
	assert.True(t, ok)
	_, ok = r.AsOf("C", day(2023, time.May, 31))
	assert.False(t, ok)
}

func TestResolveTriesCandidatesInOrder(t *testing.T) {
	r := testResolver()

	// B's only interval misses the date, so it is discarded and A wins.
	rp, ok := r.Resolve([]string{"B", "A"}, day(2023, time.February, 10))
	require.True(t, ok)
	assert.Equal(t, "A", rp.ProductID)
	assert.Equal(t, "A_20230101", rp.PriceID)
	assert.True(t, rp.Ceiling.Equal(decimal.RequireFromString("12.50")))
}

func TestResolveUnknownCandidates(t *testing.T) {
	r := testResolver()
	_, ok := r.Resolve([]string{"X", "Y"}, day(2023, time.February, 10))
	assert.False(t, ok)
}

func TestResolveCeilingDecisionTable(t *testing.T) {
	base := model.PriceInterval{
		ProductID: "D",
		Start:     day(2023, time.January, 1),
		PF0:       money("1.00"),
		PF20:      money("2.00"),
		PMVG0:     money("3.00"),
		PMVG20:    money("4.00"),
	}

	cases := []struct {
		name    string
		cap     bool
		icms0   bool
		ceiling string
	}{
		{"cap and icms zero", true, true, "3.00"},
		{"cap charged", true, false, "4.00"},
		{"no cap icms zero", false, true, "1.00"},
		{"no cap charged", false, false, "2.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pi := base
			pi.CAP = tc.cap
			pi.ICMS0 = tc.icms0
			r := NewResolver([]model.PriceInterval{pi})

			rp, ok := r.Resolve([]string{"D"}, day(2023, time.February, 1))
			require.True(t, ok)
			assert.True(t, rp.Ceiling.Equal(decimal.RequireFromString(tc.ceiling)))
			assert.Equal(t, tc.cap, rp.CAP)
			assert.Equal(t, tc.icms0, rp.ICMS0)
		})
	}
}

func TestResolveSkipsCandidateWithoutFiledCeiling(t *testing.T) {
	r := NewResolver([]model.PriceInterval{
		{
			ProductID: "E",
			Start:     day(2023, time.January, 1),
			End:       day(2023, time.April, 15),
			// No CAP, ICMS charged: the ceiling would be PF 20%,
			// which this row never filed.
			PF0: decimal.NullDecimal{},
		},
		{
			PriceID:   "F_20230101",
			ProductID: "F",
			Start:     day(2023, time.January, 1),
			End:       day(2023, time.April, 15),
			PF20:      money("9.00"),
		},
	})

	rp, ok := r.Resolve([]string{"E", "F"}, day(2023, time.February, 1))
	require.True(t, ok)
	assert.Equal(t, "F", rp.ProductID)
}
