package lppl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticSeries(p Parameters, n int) (t, y []float64) {
	t = make([]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = float64(i)
	}
	y = Predict(p, t)
	return t, y
}

func TestPredict_DomainGuardRejectsPastCriticalTime(t *testing.T) {
	p := Parameters{Tc: 10, M: 0.5, W: 8, A: 1, B: -0.1, C1: 0.01, C2: 0.01}
	tv := []float64{9, 10, 11}
	yhat := Predict(p, tv)
	assert.False(t, math.IsInf(yhat[0], 0))
	assert.True(t, math.IsInf(yhat[1], 1), "Delta==0 must be rejected")
	assert.True(t, math.IsInf(yhat[2], 1), "Delta<0 must be rejected")
}

func TestSSR_ZeroForExactRecovery(t *testing.T) {
	p := Parameters{Tc: 430, M: 0.33, W: 8.5, A: 5.0, B: -0.25, C1: 0.03, C2: 0.02}
	tv, y := syntheticSeries(p, 400)
	ssr := SSR(p, tv, y)
	assert.InDelta(t, 0, ssr, 1e-18)
}

func TestLinearFit_RecoversKnownABC1C2(t *testing.T) {
	known := Parameters{Tc: 200, M: 0.4, W: 9, A: 3.0, B: -0.5, C1: 0.08, C2: -0.04}
	tv, y := syntheticSeries(known, 150)

	basis := ComputeBasis(tv, known.Tc, known.M, known.W)
	a, b, c1, c2, ssr, ok := LinearFit(basis, y)
	require.True(t, ok)
	assert.InDelta(t, known.A, a, 1e-6)
	assert.InDelta(t, known.B, b, 1e-6)
	assert.InDelta(t, known.C1, c1, 1e-6)
	assert.InDelta(t, known.C2, c2, 1e-6)
	assert.InDelta(t, 0, ssr, 1e-12)
}

func TestLinearFit_InsufficientPointsFails(t *testing.T) {
	basis := ComputeBasis([]float64{0, 1, 2}, 10, 0.5, 8)
	_, _, _, _, _, ok := LinearFit(basis, []float64{0.1, 0.2, 0.3})
	assert.False(t, ok)
}

func TestRMSE(t *testing.T) {
	assert.InDelta(t, 1.0, RMSE(4, 4), 1e-9)
	assert.True(t, math.IsInf(RMSE(4, 0), 1))
}
