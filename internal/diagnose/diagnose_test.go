package diagnose

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/lppldiag/internal/cache"
)

type fakeSource struct {
	dates  []time.Time
	closes []float64
	err    error
}

func (f *fakeSource) GetDailyCloses(_ context.Context, _ string, _, end *time.Time) ([]time.Time, []float64, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if end == nil {
		return f.dates, f.closes, nil
	}
	n := 0
	for n < len(f.dates) && !f.dates[n].After(*end) {
		n++
	}
	return f.dates[:n], f.closes[:n], nil
}

func randomWalkCloses(n int) ([]time.Time, []float64) {
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
	return dates, closes
}

type memStore struct {
	bySymbol map[string]cache.CachedAnalysis
	puts     int
}

func newMemStore() *memStore { return &memStore{bySymbol: map[string]cache.CachedAnalysis{}} }

func (m *memStore) GetLatest(_ context.Context, symbol string) (*cache.CachedAnalysis, error) {
	if a, ok := m.bySymbol[symbol]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memStore) Put(_ context.Context, analysis cache.CachedAnalysis) error {
	m.puts++
	m.bySymbol[analysis.Symbol] = analysis
	return nil
}

func testOptions() Options {
	return Options{WindowMin: 30, WindowMax: 60, WindowStep: 30, Workers: 2}
}

func TestDiagnose_FirstCallRecomputesAndPersists(t *testing.T) {
	dates, closes := randomWalkCloses(260)
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Store:   newMemStore(),
		Options: testOptions(),
	}

	resp, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.True(t, resp.CacheMissPersisted)
	assert.Equal(t, "TEST", resp.Symbol)
}

func TestDiagnose_SecondCallIsServedFromCacheWithEquivalentPayload(t *testing.T) {
	dates, closes := randomWalkCloses(260)
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Store:   newMemStore(),
		Options: testOptions(),
	}

	first, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	require.NoError(t, err)

	second, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.False(t, second.CacheMissPersisted)
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.ConfidenceIndicator, second.ConfidenceIndicator)
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, len(first.DetailedResults), len(second.DetailedResults))
}

func TestDiagnose_ForceBypassesCacheAndRecomputes(t *testing.T) {
	dates, closes := randomWalkCloses(260)
	store := newMemStore()
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Store:   store,
		Options: testOptions(),
	}

	_, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)

	resp, err := facade.Diagnose(context.Background(), "TEST", nil, true)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, store.puts)
}

func TestDiagnose_InsufficientHistoryReturnsError(t *testing.T) {
	dates, closes := randomWalkCloses(10)
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Options: testOptions(),
	}

	_, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	assert.Error(t, err)
}

func TestDiagnose_PriceSourceErrorIsWrappedAndReturned(t *testing.T) {
	facade := &Facade{
		Source:  &fakeSource{err: errors.New("upstream unavailable")},
		Options: testOptions(),
	}

	_, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TEST")
}

func TestDiagnose_NilStoreSkipsPersistenceWithoutError(t *testing.T) {
	dates, closes := randomWalkCloses(260)
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Options: testOptions(),
	}

	resp, err := facade.Diagnose(context.Background(), "TEST", nil, false)
	require.NoError(t, err)
	assert.False(t, resp.CacheMissPersisted)
}

func TestDiagnose_EndDateTruncatesTheSeriesBeforeFitting(t *testing.T) {
	dates, closes := randomWalkCloses(260)
	facade := &Facade{
		Source:  &fakeSource{dates: dates, closes: closes},
		Options: testOptions(),
	}

	end := dates[99]
	resp, err := facade.Diagnose(context.Background(), "TEST", &end, false)
	require.NoError(t, err)
	assert.Equal(t, 100, resp.AnalysisPeriod.Days)
}

func TestOptions_SweepOptionsFillsInUnsetFieldsFromDefaults(t *testing.T) {
	o := Options{}
	so := o.sweepOptions()
	assert.Greater(t, so.WindowMax, 0)
	assert.Greater(t, so.WindowMin, 0)
}

func TestOptions_ForecastDaysDefaultsTo60(t *testing.T) {
	assert.Equal(t, 60, Options{}.forecastDays())
	assert.Equal(t, 10, Options{ForecastDays: 10}.forecastDays())
}
