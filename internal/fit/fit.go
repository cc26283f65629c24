// Package fit implements the §4.3 Single-Window Fitter: a bounded
// differential-evolution search over (tc, m, omega), each candidate scored
// by an analytic linear least-squares solve over (A, B, C1, C2).
package fit

import (
	"math"
	"math/rand"
	"time"

	"github.com/sawpanic/lppldiag/internal/lppl"
)

// Result is the outcome of fitting one window.
type Result struct {
	Parameters lppl.Parameters
	SSR        float64
	RMSE       float64
	Success    bool
	WindowSize int
	Origin     time.Time
	End        time.Time
}

// Options configures the differential-evolution search. Zero-value Options
// are replaced by DefaultOptions.
type Options struct {
	PopulationSize int
	MaxIterations  int
	Tolerance      float64
	RMSECeiling    float64
	Seed           *int64 // nil => non-deterministic (time-seeded)
}

// DefaultOptions mirror the §4.3 "full global" recommended defaults.
func DefaultOptions() Options {
	return Options{
		PopulationSize: 30,
		MaxIterations:  200,
		Tolerance:      1e-6,
		RMSECeiling:    0.5,
	}
}

func (o Options) withDefaults() Options {
	if o.PopulationSize <= 0 {
		o.PopulationSize = 30
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 200
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
	if o.RMSECeiling <= 0 {
		o.RMSECeiling = 0.5
	}
	return o
}

type candidate struct {
	tc, m, w   float64
	a, b, c1, c2 float64
	ssr        float64
	feasible   bool
}

// score evaluates one (tc, m, w) triple via the linear subspace solve and
// checks the B<=0 constraint from the bounds table. Infeasible or
// numerically broken candidates get ssr=+Inf.
func score(t, y []float64, tc, m, w float64, b Bounds) candidate {
	c := candidate{tc: tc, m: m, w: w, ssr: math.Inf(1)}
	basis := lppl.ComputeBasis(t, tc, m, w)
	a, bb, c1, c2, ssr, ok := lppl.LinearFit(basis, y)
	if !ok || math.IsNaN(ssr) || math.IsInf(ssr, 0) {
		return c
	}
	if bb > b.BMax || bb < b.BMin {
		return c
	}
	c.a, c.b, c.c1, c.c2 = a, clamp(bb, b.BMin, b.BMax), clamp(c1, b.CMin, b.CMax), clamp(c2, b.CMin, b.CMax)
	c.ssr = ssr
	c.feasible = true
	return c
}

// Fit runs the bounded differential-evolution search for one window (t, y)
// of length n and returns a Result. Fit never returns an error: failure is
// represented by Success=false per §4.3's failure-mode policy.
func Fit(t, y []float64, origin, end time.Time, opts Options) Result {
	opts = opts.withDefaults()
	n := len(y)
	bounds := DefaultBounds(n, y)

	// A constant series has no trend or oscillation for the model to
	// describe, so it is reported as a failed fit.
	flat := true
	for _, v := range y {
		if v != y[0] {
			flat = false
			break
		}
	}
	if flat {
		return Result{Success: false, WindowSize: n, Origin: origin, End: end}
	}

	var rng *rand.Rand
	if opts.Seed != nil {
		rng = rand.New(rand.NewSource(*opts.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	pop := make([]candidate, opts.PopulationSize)
	for i := range pop {
		tc := bounds.TcMin + rng.Float64()*(bounds.TcMax-bounds.TcMin)
		m := bounds.MMin + rng.Float64()*(bounds.MMax-bounds.MMin)
		w := bounds.WMin + rng.Float64()*(bounds.WMax-bounds.WMin)
		pop[i] = score(t, y, tc, m, w, bounds)
	}

	const f = 0.8  // differential weight
	const cr = 0.9 // crossover probability

	bestSSR := math.Inf(1)
	converged := 0
	for iter := 0; iter < opts.MaxIterations; iter++ {
		improved := false
		for i := range pop {
			a, b, c := pickThree(rng, len(pop), i)
			trialTc := mutate(pop[a].tc, pop[b].tc, pop[c].tc, f, bounds.TcMin, bounds.TcMax, rng)
			trialM := mutate(pop[a].m, pop[b].m, pop[c].m, f, bounds.MMin, bounds.MMax, rng)
			trialW := mutate(pop[a].w, pop[b].w, pop[c].w, f, bounds.WMin, bounds.WMax, rng)

			if rng.Float64() > cr {
				trialTc = pop[i].tc
			}
			if rng.Float64() > cr {
				trialM = pop[i].m
			}
			if rng.Float64() > cr {
				trialW = pop[i].w
			}

			trial := score(t, y, trialTc, trialM, trialW, bounds)
			if trial.ssr < pop[i].ssr {
				pop[i] = trial
				improved = true
			}
		}

		gen := bestOf(pop)
		if gen.ssr < bestSSR*(1-opts.Tolerance) {
			bestSSR = gen.ssr
			converged = 0
		} else {
			converged++
		}
		if !improved || converged > 20 {
			break
		}
	}

	best := selectWithTieBreak(pop, float64(n))
	if !best.feasible || math.IsInf(best.ssr, 0) {
		return Result{Success: false, WindowSize: n, Origin: origin, End: end}
	}

	rmse := lppl.RMSE(best.ssr, n)
	params := lppl.Parameters{Tc: best.tc, M: best.m, W: best.w, A: best.a, B: best.b, C1: best.c1, C2: best.c2}

	if rmse > opts.RMSECeiling || math.IsNaN(rmse) {
		return Result{Parameters: params, SSR: best.ssr, RMSE: rmse, Success: false, WindowSize: n, Origin: origin, End: end}
	}

	return Result{
		Parameters: params,
		SSR:        best.ssr,
		RMSE:       rmse,
		Success:    true,
		WindowSize: n,
		Origin:     origin,
		End:        end,
	}
}

func bestOf(pop []candidate) candidate {
	best := pop[0]
	for _, c := range pop[1:] {
		if c.ssr < best.ssr {
			best = c
		}
	}
	return best
}

// selectWithTieBreak picks the best candidate, preferring |tc-n| minimal
// among candidates within 1e-9*SSR_best of the minimum, per §4.3.
func selectWithTieBreak(pop []candidate, n float64) candidate {
	best := bestOf(pop)
	if math.IsInf(best.ssr, 0) {
		return best
	}
	threshold := best.ssr + 1e-9*best.ssr
	winner := best
	bestDist := math.Abs(best.tc - n)
	for _, c := range pop {
		if !c.feasible || c.ssr > threshold {
			continue
		}
		d := math.Abs(c.tc - n)
		if d < bestDist {
			winner = c
			bestDist = d
		}
	}
	return winner
}

func mutate(a, b, c, f, lo, hi float64, rng *rand.Rand) float64 {
	v := a + f*(b-c)
	return clamp(v, lo, hi)
}

// pickThree returns three distinct population indices, none equal to
// exclude, for the mutation step.
func pickThree(rng *rand.Rand, size, exclude int) (a, b, c int) {
	pick := func() int {
		for {
			i := rng.Intn(size)
			if i != exclude {
				return i
			}
		}
	}
	a = pick()
	for {
		b = pick()
		if b != a {
			break
		}
	}
	for {
		c = pick()
		if c != a && c != b {
			break
		}
	}
	return
}
