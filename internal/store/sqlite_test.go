package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", got.CatalogHash)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Stats)
	assert.Nil(t, got.FinishedAt)

	stats := model.NewRunStats()
	stats.Total = 10
	stats.Matched = 7
	stats.Unresolved = 3
	stats.ByStage[model.ProvenanceEAN1] = 5
	stats.ByStage[model.ProvenanceFuzzy] = 2
	require.NoError(t, s.CompleteRun(ctx, run.ID, stats))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 10, got.Stats.Total)
	assert.Equal(t, 5, got.Stats.ByStage[model.ProvenanceEAN1])
}

func TestSQLiteFailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "sha256:abc")
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.NotNil(t, got.FinishedAt)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")

	err = s.CompleteRun(ctx, "missing", model.NewRunStats())
	assert.ErrorContains(t, err, "run not found")

	err = s.FailRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteListRunsFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, "hash-a")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "hash-a")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "hash-b")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, r1.ID, model.NewRunStats()))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byHash, err := s.ListRuns(ctx, RunFilter{CatalogHash: "hash-a"})
	require.NoError(t, err)
	assert.Len(t, byHash, 2)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteUnresolvedRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "hash")
	require.NoError(t, err)

	items := []*model.InvoiceLineItem{
		{Description: "DIPIRONA GENERICO 500MG", EAN: "7891234567890", Quantity: 2},
		{Description: "PRODUTO DESCONHECIDO", Quantity: 1},
	}
	require.NoError(t, s.SaveUnresolved(ctx, run.ID, items))

	got, err := s.ListUnresolved(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DIPIRONA GENERICO 500MG", got[0].Description)
	assert.Equal(t, "7891234567890", got[0].EAN)
	assert.Equal(t, 2.0, got[0].Quantity)
	assert.Empty(t, got[0].Provenance)
}

func TestSQLiteMatchedRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "hash")
	require.NoError(t, err)

	withPrice := &model.InvoiceLineItem{Description: "NOVALGINA 500MG CX 10"}
	withPrice.Resolve("P1", []string{"P1"}, model.ProvenanceEAN1)
	noPrice := &model.InvoiceLineItem{Description: "GLIFAGE XR 500MG"}
	noPrice.Resolve("P2", []string{"P2"}, model.ProvenanceFuzzy)

	items := []model.MatchedItem{
		{
			Line: withPrice,
			Price: &model.ResolvedPrice{
				ProductID: "P1",
				PriceID:   "P1_20240101",
				Ceiling:   decimal.RequireFromString("12.50"),
				CAP:       true,
			},
		},
		{Line: noPrice},
	}
	require.NoError(t, s.SaveMatched(ctx, run.ID, items))

	got, err := s.ListMatched(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "P1", got[0].Line.ProductID)
	assert.Equal(t, model.ProvenanceEAN1, got[0].Line.Provenance)
	require.NotNil(t, got[0].Price)
	assert.Equal(t, "P1_20240101", got[0].Price.PriceID)
	assert.True(t, got[0].Price.Ceiling.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, got[0].Price.CAP)

	assert.Equal(t, "P2", got[1].Line.ProductID)
	assert.Nil(t, got[1].Price)
}

func TestSQLiteSaveMatchedEmpty(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.SaveMatched(context.Background(), "any", nil))
}

func TestSQLiteSaveUnresolvedEmpty(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.SaveUnresolved(context.Background(), "any", nil))
}

func TestSQLiteIntervalRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	intervals := []model.PriceInterval{
		{
			PriceID:   "P1_20240101",
			ProductID: "P1",
			Start:     start,
			End:       end,
			PF0:       decimal.NullDecimal{Decimal: decimal.RequireFromString("10.50"), Valid: true},
			PF20:      decimal.NullDecimal{Decimal: decimal.RequireFromString("13.13"), Valid: true},
			ICMS0:     true,
		},
		{
			PriceID:   "P1_20240301",
			ProductID: "P1",
			Start:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			PF0:       decimal.NullDecimal{Decimal: decimal.RequireFromString("12.00"), Valid: true},
		},
	}
	require.NoError(t, s.SaveIntervals(ctx, intervals))

	got, err := s.LoadIntervals(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "P1_20240101", got[0].PriceID)
	assert.True(t, got[0].Start.Equal(start))
	assert.True(t, got[0].End.Equal(end))
	assert.True(t, got[0].PF0.Valid)
	assert.Equal(t, "10.5", got[0].PF0.Decimal.String())
	assert.False(t, got[0].PMVG0.Valid)
	assert.True(t, got[0].ICMS0)
	assert.False(t, got[0].CAP)

	assert.True(t, got[1].Open())
}

func TestSQLiteSaveIntervalsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	pi := model.PriceInterval{
		PriceID:   "P1_20240101",
		ProductID: "P1",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PF0:       decimal.NullDecimal{Decimal: decimal.RequireFromString("10.00"), Valid: true},
	}
	require.NoError(t, s.SaveIntervals(ctx, []model.PriceInterval{pi}))

	// Re-consolidation closes the interval and rewrites the same row.
	pi.End = time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveIntervals(ctx, []model.PriceInterval{pi}))

	got, err := s.LoadIntervals(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Open())
}
