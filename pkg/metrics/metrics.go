package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "navigatorx"

type ContractionMetrics struct {
	ContractedVertices   prometheus.Counter
	Shortcuts            prometheus.Counter
	LazyReinserts        prometheus.Counter
	RemainingVertices    prometheus.Gauge
	PreprocessingSeconds prometheus.Gauge
	BufferPoolHitRatio   prometheus.Gauge
}

// NewContractionMetrics registers the contraction metrics on reg.
func NewContractionMetrics(reg prometheus.Registerer) *ContractionMetrics {
	factory := promauto.With(reg)
	return &ContractionMetrics{
		ContractedVertices: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contraction",
			Name:      "contracted_vertices_total",
			Help:      "Number of vertices contracted.",
		}),
		Shortcuts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contraction",
			Name:      "shortcuts_total",
			Help:      "Number of shortcut arcs inserted.",
		}),
		LazyReinserts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contraction",
			Name:      "lazy_reinserts_total",
			Help:      "Number of vertices pushed back into the queue after their score was recomputed.",
		}),
		RemainingVertices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "contraction",
			Name:      "remaining_vertices",
			Help:      "Vertices still waiting in the contraction queue.",
		}),
		PreprocessingSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "contraction",
			Name:      "preprocessing_seconds",
			Help:      "Wall time of the last contraction run.",
		}),
		BufferPoolHitRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "buffer_pool_hit_ratio",
			Help:      "Fraction of page fetches served from the buffer pool.",
		}),
	}
}
