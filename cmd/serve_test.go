package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsight/sourcing-cli/internal/config"
	"github.com/dropsight/sourcing-cli/internal/model"
	"github.com/dropsight/sourcing-cli/internal/pipeline"
	"github.com/dropsight/sourcing-cli/internal/store"
	"github.com/dropsight/sourcing-cli/pkg/marketsource"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.Source.DefaultCurrency = "USD"
	c.Quality = config.QualityConfig{MinRating: 4.7, MinFeedbackRate: 0.95}
	c.Momentum = config.MomentumConfig{WeakMax: 5, StrongMin: 50, StrongCeiling: 500}
	c.Margin = config.MarginConfig{
		MarkupTiers: config.DefaultMarkupTiers(),
		FeePercent:  0.12,
		FeeFixed:    0.30,
		CaptureRate: 0.05,
	}
	c.Saturation = config.SaturationConfig{MediumMin: 1, HighMin: 3, TitleSimilarity: 0.35}
	c.Batch.MaxConcurrent = 2
	return c
}

// fakeSource serves canned listings without the network.
type fakeSource struct {
	listings map[string]*marketsource.Listing
}

func (f *fakeSource) FetchListing(_ context.Context, productID string) (*marketsource.Listing, error) {
	listing, ok := f.listings[productID]
	if !ok {
		return nil, eris.Errorf("marketsource: status 404")
	}
	return listing, nil
}

func goodListing() *marketsource.Listing {
	return &marketsource.Listing{
		ProductID:        "P-100",
		Title:            "Ceramic Pour Over Coffee Dripper",
		Currency:         "USD",
		Price:            "10.00",
		ShippingCost:     "2.00",
		Rating:           4.9,
		PositiveFeedback: 0.97,
		OrderCount:       600,
		StoreOpenedAt:    "2025-03-01",
		Categories:       []string{"kitchen", "coffee"},
	}
}

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	cfg = testConfig()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	return &pipelineEnv{
		store:    st,
		source:   &fakeSource{listings: map[string]*marketsource.Listing{"P-100": goodListing()}},
		analyzer: pipeline.New(cfg, nil),
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_AnalyzeInlineListing(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodPost, "/analyze", map[string]any{
		"listing": goodListing(),
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec model.AnalysisRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "P-100", rec.ProductID)
	assert.Equal(t, model.VerdictAccepted, rec.Result.Verdict)
	require.NotNil(t, rec.Result.Margin)
	assert.Equal(t, "30.00", rec.Result.Margin.SuggestedPrice.StringFixed(2))
}

func TestRouter_AnalyzeByProductID(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	rr := doRequest(t, router, http.MethodPost, "/analyze", map[string]any{
		"product_id": "P-100",
		"save":       true,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec model.AnalysisRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.NotEmpty(t, rec.ID)

	// Saved record is retrievable.
	rr = doRequest(t, router, http.MethodGet, "/analyses/"+rec.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_AnalyzeMissingInput(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodPost, "/analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "product_id or listing is required")
}

func TestRouter_AnalyzeUnknownProduct(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodPost, "/analyze", map[string]any{
		"product_id": "P-404",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRouter_StoresCRUD(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodPost, "/stores", map[string]any{
		"domain":             "shop.example.com",
		"product_categories": []string{"kitchen"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var ts model.TrackedStore
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ts))
	assert.NotEmpty(t, ts.StoreID)

	rr = doRequest(t, router, http.MethodGet, "/stores", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stores []model.TrackedStore
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stores))
	assert.Len(t, stores, 1)

	rr = doRequest(t, router, http.MethodDelete, "/stores/"+ts.StoreID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, "/stores/"+ts.StoreID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_StoresMissingDomain(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodPost, "/stores", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "domain is required")
}

func TestRouter_ListAnalysesFilter(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	rr := doRequest(t, router, http.MethodPost, "/analyze", map[string]any{
		"product_id": "P-100",
		"save":       true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/analyses?verdict=accepted", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var records []model.AnalysisRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	rr = doRequest(t, router, http.MethodGet, "/analyses?verdict=rejected", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	records = nil
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	assert.Empty(t, records)
}

func TestRouter_GetAnalysisNotFound(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rr := doRequest(t, router, http.MethodGet, "/analyses/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
