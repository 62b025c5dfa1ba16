// Package metrics holds the Prometheus collectors for the scan, fetch and
// cache paths.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry owns its collectors on a private Prometheus registry so several
// instances can coexist in one process.
type Registry struct {
	reg *prometheus.Registry

	ScanDuration  prometheus.Histogram
	Candidates    prometheus.Gauge
	StrongSectors prometheus.Gauge
	FetchRequests *prometheus.CounterVec
	FetchErrors   *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "daypick_scan_duration_seconds",
			Help:    "Duration of one full candidate scan in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "daypick_candidates_selected",
			Help: "Candidate rows produced by the most recent scan",
		}),
		StrongSectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "daypick_strong_sectors",
			Help: "Strong sectors found by the most recent scan",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daypick_fetch_requests_total",
			Help: "Quote fetches attempted, by exchange board",
		}, []string{"board"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daypick_fetch_errors_total",
			Help: "Quote fetches failed, by exchange board",
		}, []string{"board"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daypick_cache_hits_total",
			Help: "Day files served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daypick_cache_misses_total",
			Help: "Day files read from disk after a cache miss",
		}),
	}

	r.reg.MustRegister(
		r.ScanDuration,
		r.Candidates,
		r.StrongSectors,
		r.FetchRequests,
		r.FetchErrors,
		r.CacheHits,
		r.CacheMisses,
	)
	return r
}

// RecordScan records the outcome of one scan.
func (r *Registry) RecordScan(d time.Duration, candidates, strongSectors int) {
	r.ScanDuration.Observe(d.Seconds())
	r.Candidates.Set(float64(candidates))
	r.StrongSectors.Set(float64(strongSectors))

	log.Debug().
		Dur("duration", d).
		Int("candidates", candidates).
		Int("strong_sectors", strongSectors).
		Msg("recorded scan metrics")
}

// RecordFetch counts one quote fetch for a board, and its failure.
func (r *Registry) RecordFetch(board string, err error) {
	r.FetchRequests.WithLabelValues(board).Inc()
	if err != nil {
		r.FetchErrors.WithLabelValues(board).Inc()
	}
}

// CacheHit and CacheMiss satisfy store.CacheStats.
func (r *Registry) CacheHit()  { r.CacheHits.Inc() }
func (r *Registry) CacheMiss() { r.CacheMisses.Inc() }

// CacheHitRatio derives hits/(hits+misses) from the counters, 0 before
// any cached read.
func (r *Registry) CacheHitRatio() float64 {
	hits := counterValue(r.CacheHits)
	total := hits + counterValue(r.CacheMisses)
	if total == 0 {
		return 0
	}
	return hits / total
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// counterValue reads a counter back through its wire type.
func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
