// Package cache implements the §4.6 Result Cache: the ResultStore interface
// external collaborators provide a medium for, plus the read/write protocol
// that decides freshness and forced recomputation.
package cache

import (
	"context"
	"time"
)

// WindowParameters is one per-window serialized parameter vector, stored
// alongside the aggregate ConfidenceReport.
type WindowParameters struct {
	WindowSize int     `json:"window_size"`
	Success    bool    `json:"success"`
	IsBubble   bool    `json:"is_bubble"`
	Tc         float64 `json:"tc"`
	M          float64 `json:"m"`
	W          float64 `json:"w"`
	A          float64 `json:"a"`
	B          float64 `json:"b"`
	C1         float64 `json:"c1"`
	C2         float64 `json:"c2"`
	SSR        float64 `json:"ssr"`
	RMSE       float64 `json:"rmse"`
}

// ConfidenceReport is the persisted form of sweep.Report's aggregate
// fields. The per-window detail is stored in CachedAnalysis.Windows as
// WindowParameters rather than the raw sweep types, to keep the store
// decoupled from the fitter's internal representation; the per-window
// classification conditions other than IsBubble are not stored.
type ConfidenceReport struct {
	TotalWindows            int     `json:"total_windows"`
	SuccessfulFits          int     `json:"successful_fits"`
	BubbleWindows           int     `json:"bubble_windows"`
	SuccessRate             float64 `json:"success_rate"`
	ConfidenceIndicator     float64 `json:"confidence_indicator"`
	State                   string  `json:"state"`
	RepresentativeWindowSize int    `json:"representative_window_size"`
}

// CachedAnalysis is the §3 CachedAnalysis record: the unit written and read
// as a whole for one (symbol, analysis_date) key.
type CachedAnalysis struct {
	Symbol         string
	AnalysisDate   time.Time // == LastPriceDate at the moment of write
	LastPriceDate  time.Time
	WindowMin      int
	WindowMax      int
	WindowStep     int
	Report         ConfidenceReport
	Windows        []WindowParameters
	CreatedAt      time.Time
}

// ResultStore is the external collaborator persisting CachedAnalysis
// records. A single-record "latest per symbol" store is the simplest
// design satisfying the write protocol (§4.6): Put always replaces any
// prior entry for the same symbol.
type ResultStore interface {
	// GetLatest returns the most recent CachedAnalysis for symbol, or nil
	// if none exists.
	GetLatest(ctx context.Context, symbol string) (*CachedAnalysis, error)
	// Put writes a CachedAnalysis atomically at (symbol, analysis_date),
	// replacing any prior entry for the symbol.
	Put(ctx context.Context, analysis CachedAnalysis) error
}

// FreshnessHint is an optional cache of each symbol's last analysis_date,
// consulted before ResultStore. It carries only the date, never the full
// record, so a fresh hint does not skip the ResultStore read. A miss or
// expiry always falls back to ResultStore — it never substitutes for it.
type FreshnessHint interface {
	// GetLastAnalysisDate returns the last known analysis_date for symbol,
	// if still within TTL, and whether the hint was present.
	GetLastAnalysisDate(ctx context.Context, symbol string) (time.Time, bool, error)
	// SetLastAnalysisDate records the analysis_date just written.
	SetLastAnalysisDate(ctx context.Context, symbol string, date time.Time) error
}

// Decision is the read-protocol outcome: whether a recompute is required,
// and the cached analysis if one exists and was used.
type Decision struct {
	NeedsRecompute bool
	Cached         *CachedAnalysis
}

// Decide implements the §4.6 read protocol steps 1-4: load the latest
// cached entry, compare its analysis_date against the latest available
// price date, and decide whether to recompute. force bypasses the
// freshness check unconditionally (step 3's "or force=true").
func Decide(ctx context.Context, store ResultStore, symbol string, latestPriceDate time.Time, force bool) (Decision, error) {
	cached, err := store.GetLatest(ctx, symbol)
	if err != nil {
		return Decision{}, err
	}
	if cached == nil || force {
		return Decision{NeedsRecompute: true, Cached: cached}, nil
	}
	if cached.AnalysisDate.Before(latestPriceDate) {
		return Decision{NeedsRecompute: true, Cached: cached}, nil
	}
	return Decision{NeedsRecompute: false, Cached: cached}, nil
}

// DecideWithHint consults an optional FreshnessHint before the durable
// ResultStore. Every path ends in Decide against the authoritative store,
// so the decision is always the one Decide would make: a fresh hint still
// reads the store for the payload, and any hint miss, expiry, or
// force=true falls through to Decide unchanged.
func DecideWithHint(ctx context.Context, store ResultStore, hint FreshnessHint, symbol string, latestPriceDate time.Time, force bool) (Decision, error) {
	if hint != nil && !force {
		if hintDate, ok, err := hint.GetLastAnalysisDate(ctx, symbol); err == nil && ok {
			if !hintDate.Before(latestPriceDate) {
				// The fast path only tells us "still fresh"; the actual
				// cached payload still has to come from the durable store
				// since FreshnessHint never carries the full record.
				return Decide(ctx, store, symbol, latestPriceDate, false)
			}
		}
	}
	return Decide(ctx, store, symbol, latestPriceDate, force)
}
