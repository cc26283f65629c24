// Package lppl implements the Log-Periodic Power Law (Johansen-Ledoit-Sornette)
// pricing model: evaluation of the model curve and the linear/nonlinear
// parameter split the fitter relies on.
package lppl

import "math"

// Parameters are the seven reals of the LPPL model, plus the two derived
// polar-form values C and Phi.
type Parameters struct {
	Tc float64 // critical time, day-offset scale
	M  float64 // power-law exponent
	W  float64 // log-periodic angular frequency (omega)
	A  float64
	B  float64
	C1 float64
	C2 float64
}

// C returns the oscillation amplitude sqrt(C1^2 + C2^2).
func (p Parameters) C() float64 {
	return math.Hypot(p.C1, p.C2)
}

// Phi returns the oscillation phase atan2(-C2, C1).
func (p Parameters) Phi() float64 {
	return math.Atan2(-p.C2, p.C1)
}

// Basis is the evaluator's linear-in-(A,B,C1,C2) design matrix for one time
// vector: f(t) = Delta^m, h(t) = Delta^m*cos(w*ln(Delta)), k(t) = Delta^m*sin(w*ln(Delta)).
// ok is false wherever Delta(t) <= 0, matching the evaluator's domain guard.
type Basis struct {
	F  []float64
	H  []float64
	K  []float64
	OK []bool
}

// ComputeBasis builds the (f, h, k) design columns for tc/m/w over t. Any
// point with tc-t[i] <= 0 is flagged not-ok and its f/h/k are left at zero;
// callers must exclude such points from the linear solve.
func ComputeBasis(t []float64, tc, m, w float64) Basis {
	n := len(t)
	b := Basis{F: make([]float64, n), H: make([]float64, n), K: make([]float64, n), OK: make([]bool, n)}
	for i, ti := range t {
		delta := tc - ti
		if delta <= 0 {
			continue
		}
		lnDelta := math.Log(delta)
		fm := math.Pow(delta, m)
		if math.IsNaN(fm) || math.IsInf(fm, 0) {
			continue
		}
		arg := w * lnDelta
		b.F[i] = fm
		b.H[i] = fm * math.Cos(arg)
		b.K[i] = fm * math.Sin(arg)
		b.OK[i] = true
	}
	return b
}

// Predict evaluates y_hat(t) = A + B*f(t) + C1*h(t) + C2*k(t) for the full
// parameter set. Returns +Inf wherever the domain guard rejects the point
// (Delta(t) <= 0), so that an SSR computed against it is rejected by the
// optimizer as specified in §4.2.
func Predict(p Parameters, t []float64) []float64 {
	b := ComputeBasis(t, p.Tc, p.M, p.W)
	out := make([]float64, len(t))
	for i := range t {
		if !b.OK[i] {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = p.A + p.B*b.F[i] + p.C1*b.H[i] + p.C2*b.K[i]
	}
	return out
}

// SSR computes the sum of squared residuals between predicted and observed
// log-prices. Any non-finite predicted value (domain guard tripped) makes
// the whole window's SSR +Inf.
func SSR(p Parameters, t, y []float64) float64 {
	yhat := Predict(p, t)
	total := 0.0
	for i := range y {
		if math.IsInf(yhat[i], 0) || math.IsNaN(yhat[i]) {
			return math.Inf(1)
		}
		d := y[i] - yhat[i]
		total += d * d
	}
	return total
}

// RMSE is sqrt(SSR/N).
func RMSE(ssr float64, n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(ssr / float64(n))
}
