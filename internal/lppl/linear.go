package lppl

import "math"

// LinearFit solves the 4-parameter least-squares subproblem
// y ~ A + B*f + C1*h + C2*k for fixed (tc, m, w), given the basis columns
// and observed log-prices. It returns the fitted (A, B, C1, C2) and the
// resulting SSR. Points where the basis is not-ok are excluded from the
// normal equations; if fewer than 4 usable points remain, ok is false.
func LinearFit(b Basis, y []float64) (a, bb, c1, c2, ssr float64, ok bool) {
	n := len(y)
	usable := 0
	for i := 0; i < n; i++ {
		if b.OK[i] {
			usable++
		}
	}
	if usable < 4 {
		return 0, 0, 0, 0, math.Inf(1), false
	}

	// Normal equations for design matrix columns [1, f, h, k].
	var xtx [4][4]float64
	var xty [4]float64
	for i := 0; i < n; i++ {
		if !b.OK[i] {
			continue
		}
		row := [4]float64{1, b.F[i], b.H[i], b.K[i]}
		for r := 0; r < 4; r++ {
			xty[r] += row[r] * y[i]
			for c := 0; c < 4; c++ {
				xtx[r][c] += row[r] * row[c]
			}
		}
	}

	sol, solvable := solve4(xtx, xty)
	if !solvable {
		return 0, 0, 0, 0, math.Inf(1), false
	}
	a, bb, c1, c2 = sol[0], sol[1], sol[2], sol[3]

	p := Parameters{A: a, B: bb, C1: c1, C2: c2}
	total := 0.0
	for i := 0; i < n; i++ {
		if !b.OK[i] {
			continue
		}
		yhat := p.A + p.B*b.F[i] + p.C1*b.H[i] + p.C2*b.K[i]
		d := y[i] - yhat
		total += d * d
	}
	return a, bb, c1, c2, total, true
}

// solve4 solves the 4x4 linear system m*x = v via Gauss-Jordan elimination
// with partial pivoting. Returns ok=false on a singular (or near-singular)
// matrix.
func solve4(m [4][4]float64, v [4]float64) (x [4]float64, ok bool) {
	const eps = 1e-12
	var aug [4][5]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			aug[r][c] = m[r][c]
		}
		aug[r][4] = v[r]
	}

	for col := 0; col < 4; col++ {
		pivot := col
		best := math.Abs(aug[col][col])
		for r := col + 1; r < 4; r++ {
			if math.Abs(aug[r][col]) > best {
				best = math.Abs(aug[r][col])
				pivot = r
			}
		}
		if best < eps {
			return x, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pivotVal := aug[col][col]
		for c := col; c < 5; c++ {
			aug[col][c] /= pivotVal
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for c := col; c < 5; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	for r := 0; r < 4; r++ {
		x[r] = aug[r][4]
	}
	return x, true
}
