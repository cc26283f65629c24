// Package priceseries normalizes a raw daily-close history into the
// contiguous day-offset/log-price arrays the LPPL fitter operates on, and
// defines the PriceSource interface external collaborators implement.
package priceseries

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// MinObservations is the minimum window length the fitter can operate on.
const MinObservations = 30

// ErrInsufficientData is returned when a series has fewer than
// MinObservations usable points.
var ErrInsufficientData = errors.New("insufficient data")

// ErrInvalidInput is returned for non-positive prices or non-monotonic dates.
var ErrInvalidInput = errors.New("invalid input")

// PriceSource is the external collaborator yielding a time-indexed,
// strictly-increasing daily close series. Implementations are responsible
// for ensuring dates are ascending business days and closes are positive.
type PriceSource interface {
	// GetDailyCloses returns ascending dates and matching strictly-positive
	// closes for symbol, optionally bounded by [start, end].
	GetDailyCloses(ctx context.Context, symbol string, start, end *time.Time) (dates []time.Time, closes []float64, err error)
}

// Window is a preprocessed contiguous sample: integer day-offsets t and
// log-prices y, anchored at an origin date.
type Window struct {
	Symbol  string
	Origin  time.Time
	Dates   []time.Time
	T       []float64
	Y       []float64
	Closes  []float64
}

// N returns the number of observations in the window.
func (w Window) N() int { return len(w.Y) }

// EndDate returns the calendar date of the last observation.
func (w Window) EndDate() time.Time { return w.Dates[len(w.Dates)-1] }

// Build validates and normalizes a raw (dates, closes) series into a
// Window. Leading/trailing NaN closes are stripped first; interior gaps
// are tolerated and simply collapsed into consecutive integer offsets, per
// spec §4.1 — t is always 0..N-1 regardless of calendar spacing.
func Build(symbol string, dates []time.Time, closes []float64) (Window, error) {
	if len(dates) != len(closes) {
		return Window{}, fmt.Errorf("priceseries: %w: dates/closes length mismatch", ErrInvalidInput)
	}

	start, end := 0, len(closes)
	for start < end && math.IsNaN(closes[start]) {
		start++
	}
	for end > start && math.IsNaN(closes[end-1]) {
		end--
	}
	dates = dates[start:end]
	closes = closes[start:end]

	n := len(closes)
	if n < MinObservations {
		return Window{}, fmt.Errorf("priceseries: %w: have %d, need >= %d", ErrInsufficientData, n, MinObservations)
	}

	t := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		if closes[i] <= 0 || math.IsNaN(closes[i]) || math.IsInf(closes[i], 0) {
			return Window{}, fmt.Errorf("priceseries: %w: non-positive close at index %d", ErrInvalidInput, i)
		}
		if i > 0 && !dates[i].After(dates[i-1]) {
			return Window{}, fmt.Errorf("priceseries: %w: dates not strictly increasing at index %d", ErrInvalidInput, i)
		}
		t[i] = float64(i)
		y[i] = math.Log(closes[i])
	}

	return Window{
		Symbol: symbol,
		Origin: dates[0],
		Dates:  dates,
		T:      t,
		Y:      y,
		Closes: closes,
	}, nil
}

// Tail returns the trailing w observations of the window (the slice used
// as one sweep window in §4.5), re-based so its own t starts at 0.
func (w Window) Tail(size int) Window {
	if size >= w.N() {
		return w
	}
	off := w.N() - size
	dates := append([]time.Time(nil), w.Dates[off:]...)
	closes := append([]float64(nil), w.Closes[off:]...)
	t := make([]float64, size)
	y := make([]float64, size)
	for i := 0; i < size; i++ {
		t[i] = float64(i)
		y[i] = math.Log(closes[i])
	}
	return Window{
		Symbol: w.Symbol,
		Origin: dates[0],
		Dates:  dates,
		T:      t,
		Y:      y,
		Closes: closes,
	}
}

// BusinessDaysAfter returns the date `n` business days after d, skipping
// Saturdays and Sundays. Used to project forecast dates past the window end.
func BusinessDaysAfter(d time.Time, n int) time.Time {
	cur := d
	for n > 0 {
		cur = cur.AddDate(0, 0, 1)
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			n--
		}
	}
	return cur
}
