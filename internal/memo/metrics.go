package memo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// memoMetrics holds the Prometheus view of one memo's counters. A nil
// *memoMetrics records nothing.
type memoMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// newMemoMetrics creates and registers the metrics, labelled with name.
func newMemoMetrics(reg prometheus.Registerer, name string) (*memoMetrics, error) {
	labels := prometheus.Labels{"name": name}
	m := &memoMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gomemo",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of memoized calls answered from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gomemo",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of memoized calls that ran the computation",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gomemo",
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of least-recently-used entries evicted",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gomemo",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in the cache",
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.evictions, m.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *memoMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *memoMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *memoMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *memoMetrics) updateSize(size int) {
	if m != nil {
		m.size.Set(float64(size))
	}
}
