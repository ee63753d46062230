package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestCleanDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2024-03-15", d(2024, 3, 15), true},
		{" 2024-03-15 ", d(2024, 3, 15), true},
		{"20240315", d(2024, 3, 15), true},
		{"15/03/2024", d(2024, 3, 15), true},
		{"2024-03-15 10:30:00", d(2024, 3, 15).Add(10*time.Hour + 30*time.Minute), true},
		{"", time.Time{}, false},
		{"-1", time.Time{}, false},
		{"nan", time.Time{}, false},
		{"NULL", time.Time{}, false},
		{"not a date", time.Time{}, false},
		// Placeholder dates stand in for missing data upstream.
		{"2000-01-01", time.Time{}, false},
		{"2010-01-01", time.Time{}, false},
		{"2020-01-01", time.Time{}, false},
		{"20200101", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := CleanDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestComputeMetrics(t *testing.T) {
	m := Compute(d(2023, 1, 1), d(2024, 1, 1), d(2023, 7, 1))

	require.True(t, m.HasTotalLife)
	assert.Equal(t, 365, m.TotalLife)
	require.True(t, m.HasUsedLife)
	assert.Equal(t, 181, m.UsedLife)
	require.True(t, m.HasRemainingDays)
	assert.Equal(t, 184, m.RemainingDays)
	require.True(t, m.HasUsedFraction)
	assert.InDelta(t, 0.4959, m.UsedFraction, 0.001)
}

func TestComputeClampsNegativeUsedLife(t *testing.T) {
	// Emission before manufacture happens with typo'd dates.
	m := Compute(d(2024, 6, 1), d(2025, 6, 1), d(2024, 1, 1))
	require.True(t, m.HasUsedLife)
	assert.Equal(t, 0, m.UsedLife)
}

func TestComputeMissingDates(t *testing.T) {
	m := Compute(time.Time{}, d(2025, 1, 1), d(2024, 1, 1))
	assert.False(t, m.HasTotalLife)
	assert.False(t, m.HasUsedLife)
	assert.False(t, m.HasUsedFraction)
	require.True(t, m.HasRemainingDays)
	assert.Equal(t, 366, m.RemainingDays)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name                string
		manuf, exp, emitted time.Time
		want                Category
	}{
		{"expired", d(2023, 1, 1), d(2024, 1, 1), d(2024, 6, 1), CategoryExpired},
		{"very near", d(2023, 1, 1), d(2024, 1, 1), d(2023, 11, 1), CategoryVeryNear},
		{"near", d(2023, 1, 1), d(2024, 1, 1), d(2023, 7, 1), CategoryNear},
		{"acceptable by fraction", d(2024, 1, 1), d(2027, 1, 1), d(2024, 6, 1), CategoryAcceptable},
		{"acceptable by remaining days alone", time.Time{}, d(2025, 1, 1), d(2024, 1, 1), CategoryAcceptable},
		{"expired without manufacture date", time.Time{}, d(2024, 1, 1), d(2024, 2, 1), CategoryExpired},
		{"all dates missing", time.Time{}, time.Time{}, time.Time{}, CategoryUnknown},
		{"zero shelf life", d(2024, 1, 1), d(2024, 1, 1), d(2023, 12, 1), CategoryUnknown},
		{"absurd remaining span", time.Time{}, d(2001, 1, 1), d(2012, 1, 1), CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.manuf, tt.exp, tt.emitted)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestCategorizeItem(t *testing.T) {
	li := &model.InvoiceLineItem{
		ManufDate:    "20230101",
		ExpiryDate:   "2024-01-01",
		EmissionDate: d(2024, 6, 1),
	}
	got := CategorizeItem(li)
	assert.Equal(t, CategoryExpired, got.Category)
}

func TestCategorizeItemPlaceholderEmission(t *testing.T) {
	li := &model.InvoiceLineItem{
		ManufDate:    "2023-01-01",
		ExpiryDate:   "2024-01-01",
		EmissionDate: d(2020, 1, 1),
	}
	got := CategorizeItem(li)
	assert.False(t, got.Metrics.HasRemainingDays)
	assert.Equal(t, CategoryUnknown, got.Category)
}

func TestSummarize(t *testing.T) {
	items := []*model.InvoiceLineItem{
		{ManufDate: "2023-01-01", ExpiryDate: "2024-01-01", EmissionDate: d(2024, 6, 1)},
		{ManufDate: "2023-01-01", ExpiryDate: "2024-01-01", EmissionDate: d(2023, 11, 1)},
		{},
	}
	counts := Summarize(items)
	assert.Equal(t, 1, counts[CategoryExpired])
	assert.Equal(t, 1, counts[CategoryVeryNear])
	assert.Equal(t, 1, counts[CategoryUnknown])
}
