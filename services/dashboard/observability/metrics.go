package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	CacheLookups   *prometheus.CounterVec // labels: cache, result={hit,miss}
	FramesLoaded   prometheus.Counter
	LoadDuration   *prometheus.HistogramVec // labels: kind={frame,layer}
	MergedRows     prometheus.Histogram
	MapClicks      *prometheus.CounterVec // labels: outcome={toggled,ignored}
	ActiveSessions prometheus.Gauge
}

const namespace = "flowpath_viewer"

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.FramesLoaded,
		m.LoadDuration,
		m.MergedRows,
		m.MapClicks,
		m.ActiveSessions,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Memo cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		FramesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_loaded_total",
			Help:      "NetCDF time slices decoded from disk.",
		}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time spent decoding a time slice or flowpath layer.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		MergedRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merged_rows",
			Help:      "Rows in the merged comparison table per render.",
			Buckets:   []float64{0, 10, 100, 1000, 10000, 100000},
		}),
		MapClicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_clicks_total",
			Help:      "Selection toggles by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live dashboard sessions.",
		}),
	}
}

// ObserveCache records one memo cache lookup.
func (m *Metrics) ObserveCache(cache, result string) {
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveLoad records one load of the given kind.
func (m *Metrics) ObserveLoad(kind string, took time.Duration) {
	if kind == "frame" {
		m.FramesLoaded.Inc()
	}
	m.LoadDuration.WithLabelValues(kind).Observe(took.Seconds())
}
