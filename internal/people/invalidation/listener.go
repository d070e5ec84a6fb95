// Package invalidation evicts cached people when PostgreSQL reports a change.
// A trigger on registered_people calls pg_notify(channel, badge_id); the
// Listener receives those notifications and invalidates the badge.
package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Invalidator removes one badge from a cache.
type Invalidator interface {
	Invalidate(ctx context.Context, badgeID string)
}

// purger is implemented by caches that can drop everything at once. It is used
// after a reconnect, when notifications may have been missed.
type purger interface {
	Purge(ctx context.Context)
}

// Metrics counts processed notifications.
type Metrics struct {
	Invalidations prometheus.Counter
	Reconnects    prometheus.Counter
}

// NewMetrics registers listener metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_cache_invalidations_total",
			Help: "Badges evicted from the cache by change notifications",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "badgegate_cache_invalidation_reconnects_total",
			Help: "Times the notification connection was re-established",
		}),
	}
}

// Listener consumes badge change notifications. A store lookup already in
// flight when a notification arrives can still write the old record after the
// eviction; wrap the cache in cache.Guarded so such writes are dropped.
type Listener struct {
	dsn          string
	channel      string
	cache        Invalidator
	logger       *slog.Logger
	metrics      *Metrics
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithPingInterval sets how often an idle connection is checked.
func WithPingInterval(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.pingInterval = d
		}
	}
}

// New creates a Listener for channel on the database at dsn.
func New(dsn, channel string, cache Invalidator, opts ...Option) *Listener {
	l := &Listener{
		dsn:          dsn,
		channel:      channel,
		cache:        cache,
		logger:       slog.Default(),
		minReconnect: 100 * time.Millisecond,
		maxReconnect: 10 * time.Second,
		pingInterval: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx is cancelled. It returns an error only if the initial
// LISTEN fails; later connection loss is retried by pq.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.minReconnect, l.maxReconnect, l.onEvent)
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen on %q: %w", l.channel, err)
	}
	l.logger.InfoContext(ctx, "cache invalidation listener started", "channel", l.channel)

	l.consume(ctx, listener.Notify, listener.Ping)
	return nil
}

func (l *Listener) consume(ctx context.Context, notify <-chan *pq.Notification, ping func() error) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				// connection was re-established; anything sent meanwhile is lost
				l.resync(ctx)
				continue
			}
			l.invalidate(ctx, n.Extra)
		case <-ticker.C:
			if err := ping(); err != nil {
				l.logger.WarnContext(ctx, "cache invalidation listener ping failed", "error", err)
			}
		}
	}
}

// invalidate evicts the payload verbatim; badge ids are not trimmed anywhere.
func (l *Listener) invalidate(ctx context.Context, badgeID string) {
	if badgeID == "" {
		return
	}
	l.cache.Invalidate(ctx, badgeID)
	if l.metrics != nil {
		l.metrics.Invalidations.Inc()
	}
	l.logger.DebugContext(ctx, "cache entry invalidated", "badge_id", badgeID)
}

func (l *Listener) resync(ctx context.Context) {
	if l.metrics != nil {
		l.metrics.Reconnects.Inc()
	}
	if p, ok := l.cache.(purger); ok {
		p.Purge(ctx)
		l.logger.WarnContext(ctx, "cache invalidation listener reconnected, local cache purged")
		return
	}
	l.logger.WarnContext(ctx, "cache invalidation listener reconnected, entries may be stale until TTL")
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		l.logger.Warn("cache invalidation listener disconnected", "error", err)
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("cache invalidation listener reconnect failed", "error", err)
	case pq.ListenerEventReconnected:
		l.logger.Info("cache invalidation listener reconnected")
	}
}
