package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiapreco/cmed-cli/internal/matcher"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

func testLookupService(t *testing.T) *lookupService {
	t.Helper()

	products := []model.CanonicalProduct{
		{
			ID:               "1043500110011-500123",
			Name:             "DIPIRONA",
			ActiveIngredient: "DIPIRONA MONOIDRATADA",
			Laboratory:       "EMS",
			Presentation:     "500 MG COMPRIMIDOS BL X 10",
			Registration:     "1043500110011",
			GGREM:            "500123",
			EAN1:             "7891234567890",
			Quantities:       model.Quantities{UnitCount: 10, MG: 500},
		},
	}
	norm := normalize.NewNormalizer(nil)
	ix := matcher.NewCandidateIndex(products, norm)
	scorer := matcher.NewScorer(matcher.DefaultScorerConfig(), ix, norm)
	cascade := matcher.NewCascade(matcher.CascadeConfig{Workers: 1}, ix, scorer, norm, nil, nil)

	intervals := []model.PriceInterval{{
		PriceID:   "1043500110011-500123_20240101",
		ProductID: "1043500110011-500123",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PF20:      decimal.NullDecimal{Decimal: decimal.RequireFromString("12.50"), Valid: true},
	}}

	byID := make(map[string]*model.CanonicalProduct)
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &lookupService{
		cascade:  cascade,
		resolver: vigency.NewResolver(intervals),
		byID:     byID,
	}
}

func postMatch(t *testing.T, svc *lookupService, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(body))
	w := httptest.NewRecorder()
	svc.match(w, req)
	return w
}

func TestMatchHandlerResolvesByEAN(t *testing.T) {
	svc := testLookupService(t)

	w := postMatch(t, svc, `{
		"description": "DIPIRONA 500MG CX 10",
		"ean": "7891234567890",
		"emission_date": "2024-06-01"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp matchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Equal(t, model.ProvenanceEAN1, resp.Provenance)
	require.NotNil(t, resp.Product)
	assert.Equal(t, "1043500110011-500123", resp.Product.ID)
	require.NotNil(t, resp.Price)
	assert.Equal(t, "12.50", resp.Price.Ceiling)
}

func TestMatchHandlerNoEmissionDateSkipsPrice(t *testing.T) {
	svc := testLookupService(t)

	w := postMatch(t, svc, `{"description": "DIPIRONA 500MG", "ean": "7891234567890"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp matchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Nil(t, resp.Price)
}

func TestMatchHandlerUnmatched(t *testing.T) {
	svc := testLookupService(t)

	w := postMatch(t, svc, `{"description": "PARAFUSO SEXTAVADO M8"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp matchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
	assert.Nil(t, resp.Product)
}

func TestDrainOnSignalFinishesInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		io.WriteString(w, "ok") //nolint:errcheck
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		drainOnSignal(ctx, srv, 5*time.Second)
		close(done)
	}()

	type result struct {
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close() //nolint:errcheck
		b, err := io.ReadAll(resp.Body)
		got <- result{body: string(b), err: err}
	}()

	// Cancel while the request is parked in the handler. Shutdown must
	// wait for it rather than cutting the connection.
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, "ok", r.body)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete during shutdown")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
}

func TestMatchHandlerRejectsBadInput(t *testing.T) {
	svc := testLookupService(t)

	w := postMatch(t, svc, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMatch(t, svc, `{"ean": "7891234567890"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMatch(t, svc, `{"description": "X", "emission_date": "01/06/2024"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
