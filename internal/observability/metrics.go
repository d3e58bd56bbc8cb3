package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heat_insight"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	// Snapshot assembly.
	Snapshots           *prometheus.CounterVec // labels: outcome={assembled,unknown_locality,unavailable,cancelled}
	AssemblyStages      *prometheus.CounterVec // labels: stage={collecting,classifying,deriving,assembled}
	AssemblyDuration    prometheus.Histogram
	DatasetLoadFailures *prometheus.CounterVec // labels: dataset
	SnapshotsPublished  *prometheus.CounterVec // labels: outcome={success,error}

	// Boundary metrics.
	BoundaryCache         *prometheus.CounterVec // labels: result={hit,miss,store_hit}
	BoundaryFetches       *prometheus.CounterVec // labels: outcome={success,not_found,error}
	BoundaryFetchDuration prometheus.Histogram
	BoundaryEnabled       prometheus.Gauge
	RedrawsSuperseded     prometheus.Counter

	// Advisory metrics.
	Advisories *prometheus.CounterVec // labels: outcome={generated,cached,fallback}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot requests by outcome.",
		}, []string{"outcome"}),
		AssemblyStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_stages_total",
			Help:      "Snapshot assembly stage transitions.",
		}, []string{"stage"}),
		AssemblyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Duration of a complete snapshot assembly.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		DatasetLoadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_load_failures_total",
			Help:      "Dataset loads that failed, by dataset.",
		}, []string{"dataset"}),
		SnapshotsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots handed to the publisher, by outcome.",
		}, []string{"outcome"}),
		BoundaryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_cache_total",
			Help:      "Boundary cache lookups by result.",
		}, []string{"result"}),
		BoundaryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_fetches_total",
			Help:      "Boundary provider requests by outcome.",
		}, []string{"outcome"}),
		BoundaryFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boundary_fetch_duration_seconds",
			Help:      "Boundary provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BoundaryEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boundary_enabled",
			Help:      "1 when a boundary provider is configured, 0 otherwise.",
		}),
		RedrawsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redraws_superseded_total",
			Help:      "Map redraws abandoned because a newer redraw started.",
		}),
		Advisories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisories_total",
			Help:      "Advisory requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Snapshots,
		m.AssemblyStages,
		m.AssemblyDuration,
		m.DatasetLoadFailures,
		m.SnapshotsPublished,
		m.BoundaryCache,
		m.BoundaryFetches,
		m.BoundaryFetchDuration,
		m.BoundaryEnabled,
		m.RedrawsSuperseded,
		m.Advisories,
	)

	return m
}
