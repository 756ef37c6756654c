package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aicache"

// LatencyBuckets defines histogram buckets for cache operation latency
// (in seconds). Cache hits land in the sub-millisecond buckets; the tail
// covers remote round trips and compression of large payloads.
var LatencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
}

// PromExporter mirrors monitor records into Prometheus metric vectors.
// Collectors are registered once, on the registerer given to
// NewPromExporter (the default registry when nil).
type PromExporter struct {
	hits             *prometheus.CounterVec
	misses           *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
	compressionSaved prometheus.Counter
	compressionRatio prometheus.Gauge
	invalidatedKeys  prometheus.Counter
	l1Bytes          prometheus.Gauge
	l1Entries        prometheus.Gauge
}

// NewPromExporter creates the exporter and registers its collectors with
// the given registerer (the default registry when nil).
func NewPromExporter(reg prometheus.Registerer) *PromExporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PromExporter{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Total cache hits by operation",
		}, []string{"operation"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Total cache misses by operation",
		}, []string{"operation"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Cache operation latency by operation",
			Buckets:   LatencyBuckets,
		}, []string{"operation"}),
		compressionSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_saved_bytes_total",
			Help:      "Total bytes saved by payload compression",
		}),
		compressionRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Most recent compressed/original size ratio",
		}),
		invalidatedKeys: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_keys_total",
			Help:      "Total keys removed by pattern invalidation",
		}),
		l1Bytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l1_bytes",
			Help:      "Approximate L1 payload footprint in bytes",
		}),
		l1Entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l1_entries",
			Help:      "Current L1 entry count",
		}),
	}
}

func (e *PromExporter) observeOperation(op string, d time.Duration, outcome Outcome) {
	switch outcome {
	case OutcomeHit:
		e.hits.WithLabelValues(op).Inc()
	case OutcomeMiss:
		e.misses.WithLabelValues(op).Inc()
	}
	e.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (e *PromExporter) observeCompression(original, compressed int) {
	if saved := original - compressed; saved > 0 {
		e.compressionSaved.Add(float64(saved))
	}
	if original > 0 {
		e.compressionRatio.Set(float64(compressed) / float64(original))
	}
}

func (e *PromExporter) observeMemory(l1Bytes int64, entries int) {
	e.l1Bytes.Set(float64(l1Bytes))
	e.l1Entries.Set(float64(entries))
}

func (e *PromExporter) observeInvalidation(keys int) {
	e.invalidatedKeys.Add(float64(keys))
}
