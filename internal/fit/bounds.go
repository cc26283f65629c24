package fit

import "math"

// Bounds are the §4.3 parameter bounds for one window of length n.
type Bounds struct {
	TcMin, TcMax float64
	MMin, MMax   float64
	WMin, WMax   float64
	BMin, BMax   float64
	AMin, AMax   float64
	CMin, CMax   float64 // shared bound for C1 and C2
}

// DefaultBounds computes the §4.3 bound table for a window of length n
// with observed log-prices y.
func DefaultBounds(n int, y []float64) Bounds {
	minY, maxY := y[0], y[0]
	for _, v := range y {
		if v < minY {
			minY = v
		}
		if v > maxY {
			maxY = v
		}
	}
	return Bounds{
		TcMin: float64(n) + 5,
		TcMax: float64(n) + 504,
		MMin:  0.1,
		MMax:  0.9,
		WMin:  2,
		WMax:  25,
		BMin:  -2,
		BMax:  0,
		AMin:  minY - 1,
		AMax:  maxY + 1,
		CMin:  -1,
		CMax:  1,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
