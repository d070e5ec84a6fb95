package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the badge resolution path. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	StoreLookups     *prometheus.CounterVec
	PublishFailures  prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	SharedStoreCalls prometheus.Counter
}

// New registers access metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_access_resolutions_total",
			Help: "Badge resolutions by outcome (granted, denied, not_found, unavailable, invalid, abandoned)",
		}, []string{"outcome"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "badgegate_access_resolve_duration_seconds",
			Help:    "Time to resolve a badge, including publish hand-off",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_access_cache_lookups_total",
			Help: "Service-level cache lookups by result (hit, miss)",
		}, []string{"result"}),
		StoreLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_access_store_lookups_total",
			Help: "Person store lookups by result (found, not_found, error)",
		}, []string{"result"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_access_publish_failures_total",
			Help: "Access events that could not be handed to the publisher",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_access_events_published_total",
			Help: "Access events handed to the publisher by status",
		}, []string{"status"}),
		SharedStoreCalls: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_access_store_lookups_shared_total",
			Help: "Resolutions that reused a concurrent store lookup for the same badge",
		}),
	}
}

func (m *Metrics) ObserveResolution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) IncStoreLookup(result string) {
	if m != nil {
		m.StoreLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncSharedStoreCall() {
	if m != nil {
		m.SharedStoreCalls.Inc()
	}
}

func (m *Metrics) IncPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) IncPublished(status string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(status).Inc()
	}
}
