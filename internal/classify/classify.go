// Package classify applies the LPPL bubble parameter-range rules (§4.4) to
// a fitted parameter set.
package classify

import "github.com/sawpanic/lppldiag/internal/lppl"

// State is a 4-way diagnosis label.
type State string

const (
	Critical State = "CRITICAL"
	Warning  State = "WARNING"
	Watch    State = "WATCH"
	Normal   State = "NORMAL"
)

// Bounds are the parameter-range rule thresholds of §4.4, pulled out as a
// struct (rather than hard-coded constants) so callers can pass their own.
// The Fitter does not read this struct: its search bounds are set
// separately in fit.DefaultBounds.
type Bounds struct {
	TcMinAhead float64 // 5
	TcMaxAhead float64 // 504
	MMin       float64 // 0.1
	MMax       float64 // 0.9
	WMin       float64 // 2
	WMax       float64 // 25
}

// DefaultBounds are the spec's default bound values.
var DefaultBounds = Bounds{TcMinAhead: 5, TcMaxAhead: 504, MMin: 0.1, MMax: 0.9, WMin: 2, WMax: 25}

// Conditions is the four boolean tests of §4.4, plus their conjunction.
type Conditions struct {
	TcInRange bool
	BNegative bool
	MInRange  bool
	WInRange  bool
	IsBubble  bool
}

// Classify computes the four boolean conditions exactly as specified, given
// the fitted parameters and the window length N used for the fit.
func Classify(p lppl.Parameters, n int, b Bounds) Conditions {
	tcAhead := p.Tc - float64(n-1)
	c := Conditions{
		TcInRange: tcAhead >= b.TcMinAhead && tcAhead <= b.TcMaxAhead,
		BNegative: p.B < 0,
		MInRange:  p.M >= b.MMin && p.M <= b.MMax,
		WInRange:  p.W >= b.WMin && p.W <= b.WMax,
	}
	c.IsBubble = c.TcInRange && c.BNegative && c.MInRange && c.WInRange
	return c
}

// confidencePct is the fraction of the four booleans that are true, scaled
// to 0..100 — the per-fit confidence used by the single-window state rule.
func (c Conditions) confidencePct() float64 {
	n := 0
	if c.TcInRange {
		n++
	}
	if c.BNegative {
		n++
	}
	if c.MInRange {
		n++
	}
	if c.WInRange {
		n++
	}
	return float64(n) / 4.0 * 100.0
}

// SingleWindowState applies the per-fit state rule of §4.4. This is only
// used when a caller fits a single window directly; the primary multi-window
// mode uses StateFromConfidenceIndicator instead (§4.5 overrides this rule).
func SingleWindowState(p lppl.Parameters, n int, c Conditions) State {
	conf := c.confidencePct()
	tcAhead := p.Tc - float64(n-1)
	switch {
	case c.IsBubble && tcAhead <= 60 && conf >= 75:
		return Critical
	case c.IsBubble && tcAhead > 60 && conf >= 75:
		return Warning
	case conf >= 50:
		return Watch
	default:
		return Normal
	}
}

// StateFromConfidenceIndicator applies the §4.5 CI-band state rule, which is
// the state used in the primary multi-window analysis mode.
func StateFromConfidenceIndicator(ci float64) State {
	switch {
	case ci >= 60:
		return Critical
	case ci >= 40:
		return Warning
	case ci >= 20:
		return Watch
	default:
		return Normal
	}
}
