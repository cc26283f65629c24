package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/lppldiag/internal/cache"
	"github.com/sawpanic/lppldiag/internal/diagnose"
)

// fakeSource serves a fixed, deterministic daily-close series so handler
// tests don't depend on network access or wall-clock dates.
type fakeSource struct {
	dates  []time.Time
	closes []float64
}

func (f *fakeSource) GetDailyCloses(_ context.Context, _ string, _, _ *time.Time) ([]time.Time, []float64, error) {
	return f.dates, f.closes, nil
}

func randomWalkSource(n int) *fakeSource {
	dates := make([]time.Time, n)
	closes := make([]float64, n)
	origin := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		dates[i] = origin.AddDate(0, 0, i)
		if i > 0 {
			price *= 1.0 + 0.001*math.Sin(float64(i))
		}
		closes[i] = price
	}
	return &fakeSource{dates: dates, closes: closes}
}

// memStore is a trivial single-entry ResultStore fake, mirroring the one in
// internal/cache's own test file.
type memStore struct {
	bySymbol map[string]cache.CachedAnalysis
}

func newMemStore() *memStore { return &memStore{bySymbol: map[string]cache.CachedAnalysis{}} }

func (m *memStore) GetLatest(_ context.Context, symbol string) (*cache.CachedAnalysis, error) {
	if a, ok := m.bySymbol[symbol]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memStore) Put(_ context.Context, analysis cache.CachedAnalysis) error {
	m.bySymbol[analysis.Symbol] = analysis
	return nil
}

func newTestServer(store cache.ResultStore) *Server {
	facade := &diagnose.Facade{
		Source: randomWalkSource(260),
		Store:  store,
		Options: diagnose.Options{
			WindowMin:  30,
			WindowMax:  60,
			WindowStep: 30,
			Workers:    2,
		},
	}
	return NewServer(facade, DefaultServerConfig())
}

func TestHandleDiagnose_ReturnsOKAndPersistsOnFirstCall(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/diagnose/TEST", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "TEST"})
	rec := httptest.NewRecorder()

	s.handleDiagnose(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp diagnose.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "TEST", resp.Symbol)
	assert.False(t, resp.Cached)
	assert.True(t, resp.CacheMissPersisted)
	assert.Contains(t, []string{"TEST"}, resp.Symbol)
}

func TestHandleDiagnose_SecondCallIsServedFromCache(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store)

	first := httptest.NewRequest(http.MethodGet, "/v1/diagnose/TEST", nil)
	first = mux.SetURLVars(first, map[string]string{"symbol": "TEST"})
	rec1 := httptest.NewRecorder()
	s.handleDiagnose(rec1, first)
	require.Equal(t, http.StatusOK, rec1.Code)

	second := httptest.NewRequest(http.MethodGet, "/v1/diagnose/TEST", nil)
	second = mux.SetURLVars(second, map[string]string{"symbol": "TEST"})
	rec2 := httptest.NewRecorder()
	s.handleDiagnose(rec2, second)
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp diagnose.Response
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
}

func TestHandleDiagnose_InvalidForceParamIsBadRequest(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/diagnose/TEST?force=maybe", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "TEST"})
	rec := httptest.NewRecorder()

	s.handleDiagnose(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_force", errResp.Code)
}

func TestHandleDiagnose_InvalidEndDateIsBadRequest(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/v1/diagnose/TEST?end=not-a-date", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "TEST"})
	rec := httptest.NewRecorder()

	s.handleDiagnose(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz_ReportsOK(t *testing.T) {
	s := newTestServer(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRouter_UnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
