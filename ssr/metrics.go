package ssr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors for island rendering.
//
//   - slinkity_island_renders_total{renderer,result} (result: ok, cached, error)
//   - slinkity_island_render_duration_seconds{renderer}
//   - slinkity_render_cache_hits_total
//   - slinkity_pages_processed_total
type Metrics struct {
	renders   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	cacheHits prometheus.Counter
	pages     prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slinkity",
			Name:      "island_renders_total",
			Help:      "Island server renders by renderer and result",
		}, []string{"renderer", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slinkity",
			Name:      "island_render_duration_seconds",
			Help:      "Island server render duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"renderer"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "slinkity",
			Name:      "render_cache_hits_total",
			Help:      "Island renders served from the render cache",
		}),
		pages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "slinkity",
			Name:      "pages_processed_total",
			Help:      "Pages run through the island post-processor",
		}),
	}
}

func (m *Metrics) observeRender(renderer, result string, start time.Time) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(renderer, result).Inc()
	m.duration.WithLabelValues(renderer).Observe(time.Since(start).Seconds())
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) page() {
	if m != nil {
		m.pages.Inc()
	}
}
