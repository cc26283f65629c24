// Package metrics exposes prometheus counters/histograms for fit, cache,
// and timeout instrumentation, grounded on the teacher's
// internal/metrics/collector.go (a struct of typed sub-metrics, refreshed
// per run).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the engine's prometheus metric handles. It is safe for
// concurrent use: every metric type here is already prometheus's
// concurrency-safe collector. The diagnose facade updates CacheHits,
// CacheMisses and CachePersistFail; the fit, sweep and in-flight worker
// metrics are registered but no package in this module updates them.
type Collector struct {
	FitsAttempted   *prometheus.CounterVec
	FitsSucceeded   *prometheus.CounterVec
	BubbleWindows   *prometheus.CounterVec
	FitDuration     *prometheus.HistogramVec
	SweepDuration    prometheus.Histogram
	SweepTimeouts    prometheus.Counter
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CachePersistFail prometheus.Counter
	InFlightWorkers  prometheus.Gauge
}

// NewCollector registers and returns a Collector on reg. Callers
// typically pass prometheus.DefaultRegisterer, or a dedicated registry in
// tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		FitsAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lppl", Name: "fits_attempted_total", Help: "window fits attempted, by symbol",
		}, []string{"symbol"}),
		FitsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lppl", Name: "fits_succeeded_total", Help: "window fits that met the RMSE ceiling, by symbol",
		}, []string{"symbol"}),
		BubbleWindows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lppl", Name: "bubble_windows_total", Help: "windows classified as bubble, by symbol",
		}, []string{"symbol"}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lppl", Name: "fit_duration_seconds", Help: "single-window fit wall time",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lppl", Name: "sweep_duration_seconds", Help: "full multi-window sweep wall time",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		SweepTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lppl", Name: "sweep_timeouts_total", Help: "sweeps that hit the wall-clock deadline",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lppl", Name: "cache_hits_total", Help: "diagnose calls served from cache, by symbol",
		}, []string{"symbol"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lppl", Name: "cache_misses_total", Help: "diagnose calls that recomputed, by symbol",
		}, []string{"symbol"}),
		CachePersistFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lppl", Name: "cache_persist_failures_total", Help: "successful analyses whose cache write failed",
		}),
		InFlightWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lppl", Name: "sweep_workers_in_flight", Help: "fit workers currently running",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.FitsAttempted, c.FitsSucceeded, c.BubbleWindows, c.FitDuration,
			c.SweepDuration, c.SweepTimeouts, c.CacheHits, c.CacheMisses,
			c.CachePersistFail, c.InFlightWorkers,
		)
	}
	return c
}

// ObserveFitDuration is a small helper mirroring the teacher's
// time.Since(start) instrumentation idiom.
func ObserveFitDuration(h *prometheus.HistogramVec, symbol string, start time.Time) {
	h.WithLabelValues(symbol).Observe(time.Since(start).Seconds())
}
