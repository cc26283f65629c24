package sweep

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/lppldiag/internal/fit"
	"github.com/sawpanic/lppldiag/internal/lppl"
	"github.com/sawpanic/lppldiag/internal/priceseries"
)

func buildSeries(t *testing.T, closes []float64) priceseries.Window {
	t.Helper()
	dates := make([]time.Time, len(closes))
	origin := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d := origin
	for i := range dates {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	w, err := priceseries.Build("TEST", dates, closes)
	require.NoError(t, err)
	return w
}

func fastOptions(seed int64) Options {
	o := DefaultOptions()
	o.WindowMin = 40
	o.WindowMax = 80
	o.WindowStep = 10
	o.Workers = 2
	o.FitOptions.PopulationSize = 12
	o.FitOptions.MaxIterations = 30
	o.FitOptions.Seed = &seed
	return o
}

func TestRun_SyntheticBubbleDetected(t *testing.T) {
	known := lppl.Parameters{Tc: 430, M: 0.33, W: 8.5, A: 5.0, B: -0.25, C1: 0.03, C2: 0.02}
	n := 400
	tv := make([]float64, n)
	for i := range tv {
		tv[i] = float64(i)
	}
	y := lppl.Predict(known, tv)
	rng := rand.New(rand.NewSource(5))
	closes := make([]float64, n)
	for i := range y {
		closes[i] = math.Exp(y[i] + rng.NormFloat64()*0.005)
	}
	series := buildSeries(t, closes)

	o := DefaultOptions()
	o.WindowMax = n
	o.WindowMin = 300
	o.WindowStep = 20
	o.Workers = 4
	seed := int64(3)
	o.FitOptions.Seed = &seed
	o.FitOptions.PopulationSize = 20
	o.FitOptions.MaxIterations = 60

	report, err := Run(context.Background(), series, o)
	require.NoError(t, err)
	assert.Greater(t, report.ConfidenceIndicator, 0.0)
	for _, w := range report.Windows {
		if w.IsBubble {
			assert.True(t, w.Success)
		}
	}
}

func TestBuild_InsufficientDataErrors(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	dates := make([]time.Time, len(closes))
	d := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	_, err := priceseries.Build("TEST", dates, closes)
	assert.ErrorIs(t, err, priceseries.ErrInsufficientData)
}

func TestRun_ShortSeriesReducesWindowLadderWithoutCrash(t *testing.T) {
	n := 40
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * math.Exp(0.01*float64(i))
	}
	series := buildSeries(t, closes)

	o := fastOptions(1)
	report, err := Run(context.Background(), series, o)
	require.NoError(t, err)
	assert.Less(t, report.ConfidenceIndicator, 40.0)
	assert.LessOrEqual(t, report.BubbleWindows, report.SuccessfulFits)
	assert.LessOrEqual(t, report.SuccessfulFits, report.TotalWindows)
}

func TestRun_WindowsEmittedInAscendingOrder(t *testing.T) {
	n := 100
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	series := buildSeries(t, closes)
	o := fastOptions(2)
	report, err := Run(context.Background(), series, o)
	require.NoError(t, err)
	for i := 1; i < len(report.Windows); i++ {
		assert.Less(t, report.Windows[i-1].WindowSize, report.Windows[i].WindowSize)
	}
}

func TestRun_FlatPricesYieldZeroConfidenceNormalState(t *testing.T) {
	n := 150
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 42.0
	}
	series := buildSeries(t, closes)
	o := fastOptions(4)
	report, err := Run(context.Background(), series, o)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.ConfidenceIndicator)
	assert.EqualValues(t, "NORMAL", report.State)
}

func TestRepresentativeFit_PrefersMedianBubbleWindow(t *testing.T) {
	r := Report{Windows: []WindowSummary{
		{WindowSize: 100, Success: true, IsBubble: true, Result: fit.Result{RMSE: 0.1}},
		{WindowSize: 200, Success: true, IsBubble: true, Result: fit.Result{RMSE: 0.2}},
		{WindowSize: 300, Success: true, IsBubble: true, Result: fit.Result{RMSE: 0.05}},
		{WindowSize: 400, Success: true, IsBubble: false, Result: fit.Result{RMSE: 0.01}},
	}}
	rep, ok := RepresentativeFit(r)
	require.True(t, ok)
	assert.Equal(t, 200, rep.WindowSize)
}

func TestRepresentativeFit_FallsBackToLowestRMSEWhenNoBubbles(t *testing.T) {
	r := Report{Windows: []WindowSummary{
		{WindowSize: 100, Success: true, IsBubble: false, Result: fit.Result{RMSE: 0.1}},
		{WindowSize: 200, Success: true, IsBubble: false, Result: fit.Result{RMSE: 0.02}},
		{WindowSize: 300, Success: false},
	}}
	rep, ok := RepresentativeFit(r)
	require.True(t, ok)
	assert.Equal(t, 200, rep.WindowSize)
}
