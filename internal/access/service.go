// Package access turns a badge scan into a resolved person, an access
// decision and an access event on the event stream.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"badgegate/internal/access/metrics"
	"badgegate/internal/access/ports"
	"badgegate/internal/people"
	dErrors "badgegate/pkg/domain-errors"
	"badgegate/pkg/platform/sentinel"
	"badgegate/pkg/requestcontext"
)

// Type aliases for interfaces from ports package.
type (
	PersonStore  = ports.PersonStore
	Cache        = ports.Cache
	GuardedCache = ports.GuardedCache
	Publisher    = ports.Publisher
)

const tracerName = "badgegate/internal/access"

// DefaultTopic receives one event per scan.
const DefaultTopic = "entrance_attempts"

// DefaultStoreTimeout bounds a store lookup shared by concurrent scans.
const DefaultStoreTimeout = 3 * time.Second

// ErrPersonNotFound is returned when no registered person holds the badge.
var ErrPersonNotFound = dErrors.New(dErrors.CodeNotFound, "no person registered for badge")

// Service resolves badges. It is safe for concurrent use; concurrent misses on
// the same badge share one store lookup.
type Service struct {
	store     PersonStore
	cache     Cache
	publisher Publisher
	topic     string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	tracer    trace.Tracer

	storeTimeout time.Duration

	lookups singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTopic overrides the event stream topic.
func WithTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithClock sets the source of event timestamps. By default the request time
// carried in the context is used.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreTimeout bounds each store lookup. The lookup is shared by every
// scan of the same badge, so it does not end when one caller goes away.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func New(store PersonStore, cache Cache, publisher Publisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("person store is required")
	}
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}

	svc := &Service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		topic:     DefaultTopic,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),

		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolve returns the person holding badgeID and emits one access event
// carrying the decision. A failed publish is logged and counted but does not
// fail the call. No event is emitted when the person cannot be resolved.
func (s *Service) Resolve(ctx context.Context, badgeID string) (people.Person, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "access.Resolve",
		trace.WithAttributes(attribute.String("badge.id", badgeID)),
	)
	defer span.End()

	if err := people.ValidateBadgeID(badgeID); err != nil {
		s.fail(span, "invalid", start, err)
		return people.Person{}, err
	}

	person, cacheHit, err := s.lookup(ctx, badgeID)
	span.SetAttributes(attribute.Bool("badge.cache_hit", cacheHit))
	if err != nil {
		outcome := "unavailable"
		switch {
		case errors.Is(err, ErrPersonNotFound):
			outcome = "not_found"
		case ctx.Err() != nil:
			outcome = "abandoned"
		}
		s.fail(span, outcome, start, err)
		return people.Person{}, err
	}

	// decision follows the resolved record, cached or not
	status := Decide(person)
	span.SetAttributes(attribute.String("access.status", string(status)))

	s.emit(ctx, NewEvent(badgeID, status, s.timestamp(ctx)))

	if status == StatusGranted {
		s.metrics.ObserveResolution("granted", time.Since(start))
	} else {
		s.metrics.ObserveResolution("denied", time.Since(start))
	}
	return person, nil
}

// List returns every registered person. It never touches the cache and emits
// no events.
func (s *Service) List(ctx context.Context) ([]people.Person, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list people", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "person store unavailable")
	}
	if all == nil {
		all = []people.Person{}
	}
	return all, nil
}

func (s *Service) lookup(ctx context.Context, badgeID string) (people.Person, bool, error) {
	if p, ok := s.cache.Get(ctx, badgeID); ok && p.BadgeID == badgeID {
		s.metrics.IncCacheHit()
		return p, true, nil
	}
	s.metrics.IncCacheMiss()

	loaded := s.lookups.DoChan(badgeID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		defer cancel()
		return s.load(loadCtx, badgeID)
	})
	select {
	case <-ctx.Done():
		// the shared lookup keeps running for the other callers
		return people.Person{}, false, fmt.Errorf("lookup badge %q: %w", badgeID, ctx.Err())
	case res := <-loaded:
		if res.Shared {
			s.metrics.IncSharedStoreCall()
		}
		if res.Err != nil {
			return people.Person{}, false, res.Err
		}
		return res.Val.(people.Person), false, nil
	}
}

func (s *Service) load(ctx context.Context, badgeID string) (people.Person, error) {
	guarded, isGuarded := s.cache.(GuardedCache)
	var gen uint64
	if isGuarded {
		gen = guarded.Generation()
	}

	p, err := s.store.FindByBadgeID(ctx, badgeID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncStoreLookup("not_found")
		return people.Person{}, ErrPersonNotFound
	case err != nil:
		s.metrics.IncStoreLookup("error")
		s.logger.WarnContext(ctx, "person store lookup failed",
			"badge_id", badgeID,
			"error", err,
		)
		return people.Person{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "person store unavailable")
	}
	s.metrics.IncStoreLookup("found")
	if !isGuarded {
		s.cache.Put(ctx, badgeID, p)
	} else if !guarded.PutIfCurrent(ctx, badgeID, p, gen) {
		s.logger.DebugContext(ctx, "cache invalidated during lookup, result not cached",
			"badge_id", badgeID,
		)
	}
	return p, nil
}

// emit hands the event to the publisher on a context detached from the
// caller's cancellation.
func (s *Service) emit(ctx context.Context, event Event) {
	payload, err := event.Encode()
	if err == nil {
		err = s.publisher.Publish(context.WithoutCancel(ctx), s.topic, event.BadgeID, payload)
	}
	if err != nil {
		s.metrics.IncPublishFailure()
		s.logger.ErrorContext(ctx, "failed to publish access event",
			"badge_id", event.BadgeID,
			"status", string(event.Status),
			"topic", s.topic,
			"error", err,
		)
		return
	}
	s.metrics.IncPublished(string(event.Status))
}

func (s *Service) timestamp(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requestcontext.Now(ctx)
}

func (s *Service) fail(span trace.Span, outcome string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	s.metrics.ObserveResolution(outcome, time.Since(start))
}
