package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks events between hand-off and broker acknowledgement.
type Metrics struct {
	Enqueued        prometheus.Counter
	Dropped         *prometheus.CounterVec
	Delivered       prometheus.Counter
	Retries         prometheus.Counter
	Lost            prometheus.Counter
	QueueDepth      prometheus.Gauge
	DeliveryLatency prometheus.Histogram
}

// NewMetrics registers publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_events_enqueued_total",
			Help: "Access events accepted into the publish queue",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgegate_events_dropped_total",
			Help: "Access events refused at hand-off by reason (queue_full, closed)",
		}, []string{"reason"}),
		Delivered: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_events_delivered_total",
			Help: "Access events acknowledged by the broker",
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_events_retries_total",
			Help: "Delivery attempts after the first one",
		}),
		Lost: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_events_lost_total",
			Help: "Access events abandoned after exhausting retries or at shutdown",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "badgegate_events_queue_depth",
			Help: "Access events waiting for a worker",
		}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "badgegate_events_delivery_seconds",
			Help:    "Time from enqueue to broker acknowledgement",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
