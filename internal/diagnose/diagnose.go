// Package diagnose implements the §4.7 Diagnosis Facade: the single public
// operation external collaborators call. It wires together the
// preprocessor, sweep analyzer, classifier, and result cache, and builds
// the forecast/fitted-curve payload for charting.
package diagnose

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/lppldiag/internal/breaker"
	"github.com/sawpanic/lppldiag/internal/cache"
	"github.com/sawpanic/lppldiag/internal/classify"
	"github.com/sawpanic/lppldiag/internal/fit"
	"github.com/sawpanic/lppldiag/internal/lppl"
	"github.com/sawpanic/lppldiag/internal/logging"
	"github.com/sawpanic/lppldiag/internal/metrics"
	"github.com/sawpanic/lppldiag/internal/priceseries"
	"github.com/sawpanic/lppldiag/internal/sweep"
)

// Point is one (date, price) sample of a fitted or forecast curve.
type Point struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// RepresentativeFit is the §4.7 representative_fit payload.
type RepresentativeFit struct {
	Parameters     lppl.Parameters `json:"parameters"`
	FittedPoints   []Point         `json:"fitted_points"`
	ForecastPoints []Point         `json:"forecast_points"`
}

// WindowDetail is one §4.7 detailed_results row.
type WindowDetail struct {
	WindowSize int  `json:"window_size"`
	Success    bool `json:"success"`
	IsBubble   bool `json:"is_bubble"`
}

// AnalysisPeriod describes the date range the sweep was run over.
type AnalysisPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// WindowRange echoes the sweep's window-size configuration.
type WindowRange struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// Statistics is the §4.7 statistics payload.
type Statistics struct {
	TotalWindows   int     `json:"total_windows"`
	SuccessfulFits int     `json:"successful_fits"`
	BubbleWindows  int     `json:"bubble_windows"`
	SuccessRate    float64 `json:"success_rate"`
}

// Response is the full §4.7 DiagnosisResponse.
type Response struct {
	Symbol              string             `json:"symbol"`
	State               classify.State     `json:"state"`
	ConfidenceIndicator float64            `json:"confidence_indicator"`
	AnalysisPeriod      AnalysisPeriod     `json:"analysis_period"`
	WindowRange         WindowRange        `json:"window_range"`
	Statistics          Statistics         `json:"statistics"`
	RepresentativeFit   *RepresentativeFit `json:"representative_fit"`
	DetailedResults     []WindowDetail     `json:"detailed_results"`
	Cached              bool               `json:"cached"`
	CacheMissPersisted  bool               `json:"cache_miss_persisted"`
}

// Options bundles every tunable the facade threads down to the sweep and
// fitter, per §6's configuration table.
type Options struct {
	WindowMin      int
	WindowMax      int
	WindowStep     int
	ForecastDays   int
	TimeoutSeconds int
	Workers        int
	RNGSeed        *int64
	RMSECeiling    float64
}

func (o Options) sweepOptions() sweep.Options {
	so := sweep.DefaultOptions()
	if o.WindowMin > 0 {
		so.WindowMin = o.WindowMin
	}
	if o.WindowMax > 0 {
		so.WindowMax = o.WindowMax
	}
	if o.WindowStep > 0 {
		so.WindowStep = o.WindowStep
	}
	if o.Workers > 0 {
		so.Workers = o.Workers
	}
	if o.TimeoutSeconds > 0 {
		so.TimeoutSeconds = o.TimeoutSeconds
	}
	fo := fit.DefaultOptions()
	fo.Seed = o.RNGSeed
	if o.RMSECeiling > 0 {
		fo.RMSECeiling = o.RMSECeiling
	}
	so.FitOptions = fo
	return so
}

func (o Options) forecastDays() int {
	if o.ForecastDays > 0 {
		return o.ForecastDays
	}
	return 60
}

// Facade is the single entry point external collaborators use.
type Facade struct {
	Source  priceseries.PriceSource
	Store   cache.ResultStore
	Hint    cache.FreshnessHint
	Breaker *breaker.PriceSourceBreaker
	Metrics *metrics.Collector
	Options Options
}

// Diagnose implements diagnose(symbol, end_date?, force?) -> DiagnosisResponse.
func (f *Facade) Diagnose(ctx context.Context, symbol string, endDate *time.Time, force bool) (Response, error) {
	runID := uuid.NewString()
	logger := logging.ForRun(runID, symbol)

	dates, closes, err := f.fetchPrices(ctx, symbol, endDate)
	if err != nil {
		return Response{}, fmt.Errorf("diagnose %s: preprocess: %w", symbol, err)
	}

	series, err := priceseries.Build(symbol, dates, closes)
	if err != nil {
		return Response{}, fmt.Errorf("diagnose %s: preprocess: %w", symbol, err)
	}

	latestPriceDate := series.EndDate()

	decision, err := cache.DecideWithHint(ctx, f.Store, f.Hint, symbol, latestPriceDate, force)
	if err != nil {
		logger.Warn().Err(err).Msg("cache decide failed, forcing recompute")
		decision = cache.Decision{NeedsRecompute: true}
	}

	if !decision.NeedsRecompute && decision.Cached != nil {
		if f.Metrics != nil {
			f.Metrics.CacheHits.WithLabelValues(symbol).Inc()
		}
		return responseFromCache(symbol, *decision.Cached, series, f.Options.forecastDays()), nil
	}

	if f.Metrics != nil {
		f.Metrics.CacheMisses.WithLabelValues(symbol).Inc()
	}

	so := f.Options.sweepOptions()
	report, err := sweep.Run(ctx, series, so)
	if err != nil {
		return Response{}, fmt.Errorf("diagnose %s: aggregate: %w", symbol, err)
	}

	resp := buildResponse(symbol, series, so, report, f.Options.forecastDays())
	resp.Cached = false

	persisted := f.persist(ctx, symbol, latestPriceDate, so, report)
	resp.CacheMissPersisted = persisted
	if persisted && f.Hint != nil {
		if err := f.Hint.SetLastAnalysisDate(ctx, symbol, latestPriceDate); err != nil {
			logger.Warn().Err(err).Msg("freshness hint write failed, non-fatal")
		}
	}

	return resp, nil
}

func (f *Facade) fetchPrices(ctx context.Context, symbol string, endDate *time.Time) ([]time.Time, []float64, error) {
	call := func() (interface{}, error) {
		dates, closes, err := f.Source.GetDailyCloses(ctx, symbol, nil, endDate)
		if err != nil {
			return nil, err
		}
		return [2]interface{}{dates, closes}, nil
	}

	if f.Breaker == nil {
		dates, closes, err := f.Source.GetDailyCloses(ctx, symbol, nil, endDate)
		return dates, closes, err
	}

	out, err := f.Breaker.Execute(ctx, call)
	if err != nil {
		return nil, nil, err
	}
	pair := out.([2]interface{})
	return pair[0].([]time.Time), pair[1].([]float64), nil
}

func (f *Facade) persist(ctx context.Context, symbol string, latestPriceDate time.Time, so sweep.Options, report sweep.Report) bool {
	repWindowSize := 0
	if rep, ok := sweep.RepresentativeFit(report); ok {
		repWindowSize = rep.WindowSize
	}
	analysis := cache.CachedAnalysis{
		Symbol:        symbol,
		AnalysisDate:  latestPriceDate,
		LastPriceDate: latestPriceDate,
		WindowMin:     so.WindowMin,
		WindowMax:     so.WindowMax,
		WindowStep:    so.WindowStep,
		Report: cache.ConfidenceReport{
			TotalWindows:             report.TotalWindows,
			SuccessfulFits:           report.SuccessfulFits,
			BubbleWindows:            report.BubbleWindows,
			SuccessRate:              report.SuccessRate,
			ConfidenceIndicator:      report.ConfidenceIndicator,
			State:                    string(report.State),
			RepresentativeWindowSize: repWindowSize,
		},
		Windows:   toWindowParameters(report.Windows),
		CreatedAt: time.Now().UTC(),
	}
	if f.Store == nil {
		return false
	}
	if err := f.Store.Put(ctx, analysis); err != nil {
		if f.Metrics != nil {
			f.Metrics.CachePersistFail.Inc()
		}
		return false
	}
	return true
}

func toWindowParameters(windows []sweep.WindowSummary) []cache.WindowParameters {
	out := make([]cache.WindowParameters, 0, len(windows))
	for _, w := range windows {
		p := w.Result.Parameters
		out = append(out, cache.WindowParameters{
			WindowSize: w.WindowSize,
			Success:    w.Success,
			IsBubble:   w.IsBubble,
			Tc:         p.Tc,
			M:          p.M,
			W:          p.W,
			A:          p.A,
			B:          p.B,
			C1:         p.C1,
			C2:         p.C2,
			SSR:        w.Result.SSR,
			RMSE:       w.Result.RMSE,
		})
	}
	return out
}

func buildResponse(symbol string, series priceseries.Window, so sweep.Options, report sweep.Report, forecastDays int) Response {
	resp := Response{
		Symbol:              symbol,
		State:               report.State,
		ConfidenceIndicator: report.ConfidenceIndicator,
		AnalysisPeriod: AnalysisPeriod{
			Start: series.Origin,
			End:   series.EndDate(),
			Days:  series.N(),
		},
		WindowRange: WindowRange{Min: so.WindowMin, Max: so.WindowMax, Step: so.WindowStep},
		Statistics: Statistics{
			TotalWindows:   report.TotalWindows,
			SuccessfulFits: report.SuccessfulFits,
			BubbleWindows:  report.BubbleWindows,
			SuccessRate:    report.SuccessRate,
		},
		DetailedResults: make([]WindowDetail, 0, len(report.Windows)),
	}

	for _, w := range report.Windows {
		resp.DetailedResults = append(resp.DetailedResults, WindowDetail{
			WindowSize: w.WindowSize,
			Success:    w.Success,
			IsBubble:   w.IsBubble,
		})
	}

	if rep, ok := sweep.RepresentativeFit(report); ok {
		win := series.Tail(rep.WindowSize)
		resp.RepresentativeFit = buildRepresentativeFit(win, rep.Result.Parameters, forecastDays)
	}

	return resp
}

// buildRepresentativeFit reconstructs exp(y_hat) over the representative
// window and a forecast extension, per §4.7: forecast emission stops at
// t >= tc since the model diverges there.
func buildRepresentativeFit(win priceseries.Window, p lppl.Parameters, forecastDays int) *RepresentativeFit {
	fitted := make([]Point, win.N())
	yhat := lppl.Predict(p, win.T)
	for i := range win.T {
		fitted[i] = Point{Date: win.Dates[i], Price: math.Exp(yhat[i])}
	}

	var forecast []Point
	lastOffset := win.T[len(win.T)-1]
	cursorDate := win.EndDate()
	for i := 1; i <= forecastDays; i++ {
		t := lastOffset + float64(i)
		if t >= p.Tc {
			break
		}
		date := priceseries.BusinessDaysAfter(cursorDate, 1)
		cursorDate = date
		y := lppl.Predict(p, []float64{t})[0]
		if math.IsInf(y, 0) {
			break
		}
		forecast = append(forecast, Point{Date: date, Price: math.Exp(y)})
	}

	return &RepresentativeFit{Parameters: p, FittedPoints: fitted, ForecastPoints: forecast}
}

func responseFromCache(symbol string, analysis cache.CachedAnalysis, series priceseries.Window, forecastDays int) Response {
	resp := Response{
		Symbol:              symbol,
		State:               classify.State(analysis.Report.State),
		ConfidenceIndicator: analysis.Report.ConfidenceIndicator,
		AnalysisPeriod: AnalysisPeriod{
			Start: series.Origin,
			End:   analysis.AnalysisDate,
			Days:  series.N(),
		},
		WindowRange: WindowRange{Min: analysis.WindowMin, Max: analysis.WindowMax, Step: analysis.WindowStep},
		Statistics: Statistics{
			TotalWindows:   analysis.Report.TotalWindows,
			SuccessfulFits: analysis.Report.SuccessfulFits,
			BubbleWindows:  analysis.Report.BubbleWindows,
			SuccessRate:    analysis.Report.SuccessRate,
		},
		DetailedResults:    make([]WindowDetail, 0, len(analysis.Windows)),
		Cached:             true,
		CacheMissPersisted: false,
	}
	for _, w := range analysis.Windows {
		resp.DetailedResults = append(resp.DetailedResults, WindowDetail{
			WindowSize: w.WindowSize,
			Success:    w.Success,
			IsBubble:   w.IsBubble,
		})
		if w.WindowSize == analysis.Report.RepresentativeWindowSize {
			p := lppl.Parameters{Tc: w.Tc, M: w.M, W: w.W, A: w.A, B: w.B, C1: w.C1, C2: w.C2}
			win := series.Tail(w.WindowSize)
			resp.RepresentativeFit = buildRepresentativeFit(win, p, forecastDays)
		}
	}
	return resp
}
