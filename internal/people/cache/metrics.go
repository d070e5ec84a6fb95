package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts lookups and backend failures per cache layer.
type Metrics struct {
	Lookups *prometheus.CounterVec
	Errors  *prometheus.CounterVec
	Skipped *prometheus.CounterVec
}

// NewMetrics registers cache metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_cache_lookups_total",
			Help: "Cache lookups by layer and result (hit, miss)",
		}, []string{"layer", "result"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_cache_errors_total",
			Help: "Cache backend errors by layer and operation; each was served as a miss",
		}, []string{"layer", "op"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_cache_skipped_total",
			Help: "Cache operations skipped because the layer's circuit breaker was open",
		}, []string{"layer", "op"}),
	}
}

func (m *Metrics) hit(layer string) {
	if m != nil {
		m.Lookups.WithLabelValues(layer, "hit").Inc()
	}
}

func (m *Metrics) miss(layer string) {
	if m != nil {
		m.Lookups.WithLabelValues(layer, "miss").Inc()
	}
}

func (m *Metrics) failed(layer, op string) {
	if m != nil {
		m.Errors.WithLabelValues(layer, op).Inc()
	}
}

func (m *Metrics) skipped(layer, op string) {
	if m != nil {
		m.Skipped.WithLabelValues(layer, op).Inc()
	}
}
