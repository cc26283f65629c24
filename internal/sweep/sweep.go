// Package sweep implements the §4.5 Multi-Window Analyzer: a sweep of
// window sizes across the tail of a price series, aggregated into a
// Confidence Indicator. The worker pool shape follows the teacher's
// internal/infrastructure/async.Pipeline convention (bounded worker count,
// WaitGroup, buffered result channel), specialized to a single stage since
// a window fit has no retry/multi-stage structure.
package sweep

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sawpanic/lppldiag/internal/classify"
	"github.com/sawpanic/lppldiag/internal/fit"
	"github.com/sawpanic/lppldiag/internal/priceseries"
)

// ErrInsufficientData mirrors priceseries.ErrInsufficientData for series
// shorter than the absolute floor of 30 observations.
var ErrInsufficientData = priceseries.ErrInsufficientData

// ErrAnalysisTimeout is returned when the wall-clock deadline is hit before
// at least 10 windows have produced a successful fit.
var ErrAnalysisTimeout = errors.New("analysis timeout before minimum fits obtained")

// Options configure the window sweep. Zero values are replaced by the
// §6 defaults.
type Options struct {
	WindowMin      int
	WindowMax      int
	WindowStep     int
	Workers        int
	TimeoutSeconds int
	FitOptions     fit.Options
	Bounds         classify.Bounds
}

// DefaultOptions mirrors the §6 configuration table defaults.
func DefaultOptions() Options {
	return Options{
		WindowMin:      125,
		WindowMax:      750,
		WindowStep:     5,
		Workers:        minInt(runtime.NumCPU(), 8),
		TimeoutSeconds: 60,
		FitOptions:     fit.DefaultOptions(),
		Bounds:         classify.DefaultBounds,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WindowSummary is one row of the per-window detail list (§4.7
// detailed_results).
type WindowSummary struct {
	WindowSize int
	Success    bool
	IsBubble   bool
	Result     fit.Result
	Conditions classify.Conditions
}

// Report is the §3 ConfidenceReport, plus the raw per-window results needed
// by the Facade to pick a representative fit.
type Report struct {
	TotalWindows        int
	SuccessfulFits       int
	BubbleWindows        int
	SuccessRate          float64
	ConfidenceIndicator  float64
	State                classify.State
	Windows              []WindowSummary
	TimedOut             bool
}

// windowSizes computes the sweep's window-size ladder for a series of
// length n, applying the §4.5 short-series reduction rule.
func windowSizes(n int, o Options) []int {
	wMin, wMax, step := o.WindowMin, o.WindowMax, o.WindowStep
	if step <= 0 {
		step = 5
	}
	if n < wMin {
		wMax = n
		wMin = maxInt(priceseries.MinObservations, n/6)
	}
	if wMax > n {
		wMax = n
	}
	if wMin > wMax {
		wMin = wMax
	}

	var sizes []int
	for w := wMin; w <= wMax; w += step {
		sizes = append(sizes, w)
	}
	if len(sizes) == 0 {
		sizes = append(sizes, wMax)
	}
	return sizes
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run sweeps the window ladder over series, fitting each window on a
// bounded worker pool and aggregating the results into a Report. Windows
// are fitted independently and out of order, but Report.Windows is always
// emitted in ascending window-size order (§4.5's ordering guarantee).
//
// Cancellation is cooperative: workers check ctx between fits. If the
// TimeoutSeconds deadline elapses before 10 successful fits are obtained,
// Run returns ErrAnalysisTimeout; otherwise, on timeout with >=10 successes
// already in hand, it returns a partial Report with TimedOut=true.
func Run(ctx context.Context, series priceseries.Window, o Options) (Report, error) {
	if series.N() < priceseries.MinObservations {
		return Report{}, ErrInsufficientData
	}

	o = withDefaults(o)
	sizes := windowSizes(series.N(), o)

	timeout := time.Duration(o.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobs := make(chan int, len(sizes))
	results := make(chan WindowSummary, len(sizes))
	for _, w := range sizes {
		jobs <- w
	}
	close(jobs)

	var wg sync.WaitGroup
	var cancelled int32
	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				select {
				case <-runCtx.Done():
					atomic.StoreInt32(&cancelled, 1)
					return
				default:
				}
				results <- fitOneWindow(series, w, o)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]WindowSummary, 0, len(sizes))
	for r := range results {
		collected = append(collected, r)
	}

	timedOut := atomic.LoadInt32(&cancelled) == 1 || runCtx.Err() != nil

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].WindowSize < collected[j].WindowSize
	})

	report := aggregate(collected, len(sizes))
	report.TimedOut = timedOut

	if timedOut && report.SuccessfulFits < 10 {
		return Report{}, ErrAnalysisTimeout
	}
	return report, nil
}

func withDefaults(o Options) Options {
	d := DefaultOptions()
	if o.WindowMin <= 0 {
		o.WindowMin = d.WindowMin
	}
	if o.WindowMax <= 0 {
		o.WindowMax = d.WindowMax
	}
	if o.WindowStep <= 0 {
		o.WindowStep = d.WindowStep
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = d.TimeoutSeconds
	}
	if o.Bounds == (classify.Bounds{}) {
		o.Bounds = d.Bounds
	}
	return o
}

func fitOneWindow(series priceseries.Window, w int, o Options) WindowSummary {
	win := series.Tail(w)
	result := fit.Fit(win.T, win.Y, win.Origin, win.EndDate(), o.FitOptions)
	if !result.Success {
		return WindowSummary{WindowSize: w, Success: false, Result: result}
	}
	cond := classify.Classify(result.Parameters, w, o.Bounds)
	return WindowSummary{WindowSize: w, Success: true, IsBubble: cond.IsBubble, Result: result, Conditions: cond}
}

func aggregate(windows []WindowSummary, total int) Report {
	r := Report{TotalWindows: total, Windows: windows}
	for _, w := range windows {
		if w.Success {
			r.SuccessfulFits++
			if w.IsBubble {
				r.BubbleWindows++
			}
		}
	}
	if total > 0 {
		r.SuccessRate = 100 * float64(r.SuccessfulFits) / float64(total)
	}
	if r.SuccessfulFits > 0 {
		r.ConfidenceIndicator = 100 * float64(r.BubbleWindows) / float64(r.SuccessfulFits)
	}
	r.State = classify.StateFromConfidenceIndicator(r.ConfidenceIndicator)
	return r
}

// RepresentativeFit selects the fit used for charting and forecasting per
// §4.5: the median window size among bubble windows if any exist, else the
// lowest-RMSE successful fit overall.
func RepresentativeFit(r Report) (WindowSummary, bool) {
	var bubbles []WindowSummary
	for _, w := range r.Windows {
		if w.Success && w.IsBubble {
			bubbles = append(bubbles, w)
		}
	}
	if len(bubbles) > 0 {
		sort.Slice(bubbles, func(i, j int) bool { return bubbles[i].WindowSize < bubbles[j].WindowSize })
		return bubbles[len(bubbles)/2], true
	}

	var best WindowSummary
	found := false
	for _, w := range r.Windows {
		if !w.Success {
			continue
		}
		if !found || w.Result.RMSE < best.Result.RMSE {
			best = w
			found = true
		}
	}
	return best, found
}
