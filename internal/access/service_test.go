package access

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"badgegate/internal/access/metrics"
	"badgegate/internal/access/mocks"
	"badgegate/internal/people"
	"badgegate/internal/people/cache"
	"badgegate/internal/people/store"
	"badgegate/internal/platform/logger"
	dErrors "badgegate/pkg/domain-errors"
	"badgegate/pkg/platform/sentinel"
	"badgegate/pkg/requestcontext"
	tu "badgegate/pkg/testutil"
)

var fixedNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

type wirePayload struct {
	BadgeID   string `json:"badge_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func decodePayload(t *testing.T, raw []byte) wirePayload {
	t.Helper()
	var p wirePayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

// =============================================================================
// Service Test Suite (mocked ports)
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockPersonStore
	cache     *mocks.MockCache
	publisher *mocks.MockPublisher
	metrics   *metrics.Metrics
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockPersonStore(s.ctrl)
	s.cache = mocks.NewMockCache(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(s.store, s.cache, s.publisher,
		WithLogger(logger.Discard()),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) person(badgeID string, active bool) people.Person {
	return people.Person{
		ID:       uuid.New(),
		BadgeID:  badgeID,
		FullName: "Ada Martin",
		Role:     "staff",
		Active:   active,
	}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.cache, s.publisher)
		s.EqualError(err, "person store is required")
	})
	s.Run("nil cache returns error", func() {
		_, err := New(s.store, nil, s.publisher)
		s.EqualError(err, "cache is required")
	})
	s.Run("nil publisher returns error", func() {
		_, err := New(s.store, s.cache, nil)
		s.EqualError(err, "publisher is required")
	})
}

func (s *ServiceSuite) TestResolveCacheMissLoadsStoreAndPopulatesCache() {
	ctx := context.Background()
	p := s.person("B-100", true)

	gomock.InOrder(
		s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(people.Person{}, false),
		s.store.EXPECT().FindByBadgeID(gomock.Any(), "B-100").Return(p, nil),
		s.cache.EXPECT().Put(gomock.Any(), "B-100", p),
		s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, payload []byte) error {
				got := decodePayload(s.T(), payload)
				s.Equal("B-100", got.BadgeID)
				s.Equal("GRANTED", got.Status)
				s.Equal("2026-10-19T08:30:00Z", got.Timestamp)
				return nil
			}),
	)

	got, err := s.service.Resolve(ctx, "B-100")
	s.Require().NoError(err)
	s.Equal(p, got)
	s.Equal("B-100", got.BadgeID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.EventsPublished.WithLabelValues("GRANTED")))
}

func (s *ServiceSuite) TestResolveCacheHitSkipsStore() {
	p := s.person("B-100", true)
	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).Return(nil)

	got, err := s.service.Resolve(context.Background(), "B-100")
	s.Require().NoError(err)
	s.Equal(p, got)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
}

func (s *ServiceSuite) TestResolveIgnoresCachedRecordForAnotherBadge() {
	foreign := s.person("B-999", true)
	p := s.person("B-100", false)

	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(foreign, true)
	s.store.EXPECT().FindByBadgeID(gomock.Any(), "B-100").Return(p, nil)
	s.cache.EXPECT().Put(gomock.Any(), "B-100", p)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).Return(nil)

	got, err := s.service.Resolve(context.Background(), "B-100")
	s.Require().NoError(err)
	s.Equal("B-100", got.BadgeID)
}

func (s *ServiceSuite) TestResolveInactivePersonIsDenied() {
	p := s.person("B-300", false)
	s.cache.EXPECT().Get(gomock.Any(), "B-300").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-300", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, payload []byte) error {
			s.Equal("DENIED", decodePayload(s.T(), payload).Status)
			return nil
		})

	got, err := s.service.Resolve(context.Background(), "B-300")
	s.Require().NoError(err, "a denied scan still returns the person")
	s.False(got.Active)
}

func (s *ServiceSuite) TestResolveNotFoundEmitsNothing() {
	s.cache.EXPECT().Get(gomock.Any(), "B-404").Return(people.Person{}, false)
	s.store.EXPECT().FindByBadgeID(gomock.Any(), "B-404").Return(people.Person{}, sentinel.ErrNotFound)
	// no Put, no Publish expected

	_, err := s.service.Resolve(context.Background(), "B-404")
	s.Require().Error(err)
	s.ErrorIs(err, ErrPersonNotFound)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("not_found")))
}

func (s *ServiceSuite) TestResolveStoreFailureIsUnavailableAndEmitsNothing() {
	boom := errors.New("connection refused")
	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(people.Person{}, false)
	s.store.EXPECT().FindByBadgeID(gomock.Any(), "B-100").Return(people.Person{}, boom)

	_, err := s.service.Resolve(context.Background(), "B-100")
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
	s.ErrorIs(err, boom)
	s.NotErrorIs(err, ErrPersonNotFound)
}

func (s *ServiceSuite) TestResolvePublishFailureDoesNotFailScan() {
	p := s.person("B-100", true)
	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).
		Return(errors.New("broker unavailable"))

	got, err := s.service.Resolve(context.Background(), "B-100")
	s.Require().NoError(err)
	s.Equal(p, got)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PublishFailures))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("granted")))
}

func (s *ServiceSuite) TestResolveRejectsEmptyBadge() {
	_, err := s.service.Resolve(context.Background(), "")
	s.Require().Error(err)
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestResolvePublishesOnDetachedContext() {
	p := s.person("B-100", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).
		DoAndReturn(func(pubCtx context.Context, _, _ string, _ []byte) error {
			s.NoError(pubCtx.Err(), "request cancellation must not reach the publisher")
			return nil
		})

	_, err := s.service.Resolve(ctx, "B-100")
	s.NoError(err)
}

func (s *ServiceSuite) TestWithTopic() {
	svc, err := New(s.store, s.cache, s.publisher, WithTopic("gate_7"), WithLogger(logger.Discard()))
	s.Require().NoError(err)

	p := s.person("B-100", true)
	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), "gate_7", "B-100", gomock.Any()).Return(nil)

	_, err = svc.Resolve(context.Background(), "B-100")
	s.NoError(err)
}

func (s *ServiceSuite) TestTimestampDefaultsToRequestTime() {
	svc, err := New(s.store, s.cache, s.publisher, WithLogger(logger.Discard()))
	s.Require().NoError(err)

	requestTime := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), requestTime)

	p := s.person("B-100", true)
	s.cache.EXPECT().Get(gomock.Any(), "B-100").Return(p, true)
	s.publisher.EXPECT().Publish(gomock.Any(), DefaultTopic, "B-100", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, payload []byte) error {
			s.Equal("2026-05-06T07:08:09Z", decodePayload(s.T(), payload).Timestamp)
			return nil
		})

	_, err = svc.Resolve(ctx, "B-100")
	s.NoError(err)
}

func (s *ServiceSuite) TestList() {
	s.Run("returns store records", func() {
		all := []people.Person{s.person("B-100", true), s.person("B-200", false)}
		s.store.EXPECT().ListAll(gomock.Any()).Return(all, nil)

		got, err := s.service.List(context.Background())
		s.Require().NoError(err)
		s.Equal(all, got)
	})

	s.Run("empty store yields empty non-nil slice", func() {
		s.store.EXPECT().ListAll(gomock.Any()).Return(nil, nil)

		got, err := s.service.List(context.Background())
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})

	s.Run("store failure is unavailable", func() {
		s.store.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := s.service.List(context.Background())
		s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
	})
}

// =============================================================================
// Behaviour with real components
// =============================================================================

// countingStore counts lookups so tests can observe cache effectiveness.
type countingStore struct {
	*store.InMemoryStore
	mu    sync.Mutex
	calls int
}

func (c *countingStore) FindByBadgeID(ctx context.Context, badgeID string) (people.Person, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.InMemoryStore.FindByBadgeID(ctx, badgeID)
}

func (c *countingStore) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newRealService(t *testing.T, pub *tu.RecordingPublisher) (*Service, *countingStore) {
	t.Helper()
	st := &countingStore{InMemoryStore: store.NewInMemory(store.DevPeople()...)}
	svc, err := New(st, cache.NewMemory(100, time.Minute), pub, WithLogger(logger.Discard()))
	require.NoError(t, err)
	return svc, st
}

func TestResolveScenarios(t *testing.T) {
	tu.Given(t, "B-100 is active and B-404 is unknown", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		svc, _ := newRealService(t, pub)

		tu.When(t, "B-100 is scanned", func(t *testing.T) {
			p, err := svc.Resolve(context.Background(), "B-100")
			require.NoError(t, err)

			tu.Then(t, "the person is returned with a GRANTED event", func(t *testing.T) {
				assert.Equal(t, "Ada Martin", p.FullName)
				msgs := pub.Messages()
				require.Len(t, msgs, 1)
				assert.Equal(t, DefaultTopic, msgs[0].Topic)
				assert.Equal(t, "B-100", msgs[0].Key)
				assert.Equal(t, "GRANTED", decodePayload(t, msgs[0].Payload).Status)
			})
		})

		tu.When(t, "B-404 is scanned", func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), "B-404")

			tu.Then(t, "not found is reported and no event is added", func(t *testing.T) {
				assert.ErrorIs(t, err, ErrPersonNotFound)
				assert.Equal(t, 1, pub.Len())
			})
		})
	})
}

func TestResolveRepeatedScanHitsStoreOnce(t *testing.T) {
	pub := &tu.RecordingPublisher{}
	svc, st := newRealService(t, pub)

	for range 3 {
		_, err := svc.Resolve(context.Background(), "B-200")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, st.Calls())
	assert.Equal(t, 3, pub.Len(), "every scan is an access attempt")
}

func TestResolveConcurrentScans(t *testing.T) {
	const n = 64
	pub := &tu.RecordingPublisher{}
	svc, st := newRealService(t, pub)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		badge := "B-100"
		if i%2 == 1 {
			badge = "B-300"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Resolve(context.Background(), badge)
			if err == nil && p.BadgeID != badge {
				err = errors.New("resolved " + p.BadgeID + " for " + badge)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, n, pub.Len())
	assert.LessOrEqual(t, st.Calls(), n)

	statuses := map[string]int{}
	for _, m := range pub.Messages() {
		got := decodePayload(t, m.Payload)
		assert.Equal(t, m.Key, got.BadgeID)
		statuses[got.Status]++
	}
	assert.Equal(t, n/2, statuses["GRANTED"])
	assert.Equal(t, n/2, statuses["DENIED"])
}

func TestResolvePublishFailureStillReturnsPerson(t *testing.T) {
	pub := &tu.RecordingPublisher{Fail: func(string, string) error { return errors.New("broker down") }}
	svc, _ := newRealService(t, pub)

	p, err := svc.Resolve(context.Background(), "B-100")
	require.NoError(t, err)
	assert.Equal(t, "B-100", p.BadgeID)
	assert.Zero(t, pub.Len())
}

// gatedStore holds every lookup until release is closed or the lookup's
// context ends.
type gatedStore struct {
	*store.InMemoryStore
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		InMemoryStore: store.NewInMemory(store.DevPeople()...),
		started:       make(chan struct{}, 16),
		release:       make(chan struct{}),
	}
}

func (g *gatedStore) FindByBadgeID(ctx context.Context, badgeID string) (people.Person, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return people.Person{}, ctx.Err()
	}
	return g.InMemoryStore.FindByBadgeID(ctx, badgeID)
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func TestResolveCancelledCallerDoesNotFailOthersOnSameBadge(t *testing.T) {
	st := newGatedStore()
	pub := &tu.RecordingPublisher{}
	svc, err := New(st, cache.None{}, pub, WithLogger(logger.Discard()))
	require.NoError(t, err)

	type result struct {
		person people.Person
		err    error
	}
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	first := make(chan result, 1)
	go func() {
		p, err := svc.Resolve(firstCtx, "B-100")
		first <- result{p, err}
	}()
	waitFor(t, st.started, "first lookup")

	second := make(chan result, 1)
	go func() {
		p, err := svc.Resolve(context.Background(), "B-100")
		second <- result{p, err}
	}()
	// let the second scan join the lookup already in flight
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	got := waitFor(t, first, "cancelled scan")
	require.ErrorIs(t, got.err, context.Canceled)
	assert.NotEqual(t, dErrors.CodeUnavailable, dErrors.CodeOf(got.err))

	close(st.release)
	got = waitFor(t, second, "second scan")
	require.NoError(t, got.err)
	assert.Equal(t, "Ada Martin", got.person.FullName)

	assert.EqualValues(t, 1, st.calls.Load(), "lookups were shared")
	msgs := pub.Messages()
	require.Len(t, msgs, 1, "only the scan that completed emits")
	assert.Equal(t, "GRANTED", decodePayload(t, msgs[0].Payload).Status)
}

func TestResolveSlowStoreIsUnavailable(t *testing.T) {
	st := newGatedStore()
	pub := &tu.RecordingPublisher{}
	svc, err := New(st, cache.None{}, pub,
		WithLogger(logger.Discard()),
		WithStoreTimeout(30*time.Millisecond),
	)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "B-100")

	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, pub.Len())
}

func TestResolveDoesNotRecacheRecordInvalidatedDuringLookup(t *testing.T) {
	st := newGatedStore()
	memory := cache.NewMemory(100, time.Minute)
	guarded := cache.NewGuarded(memory)
	svc, err := New(st, guarded, &tu.RecordingPublisher{}, WithLogger(logger.Discard()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(context.Background(), "B-100")
		done <- err
	}()
	waitFor(t, st.started, "lookup")

	// change notification arrives while the old row is being read
	guarded.Invalidate(context.Background(), "B-100")
	close(st.release)
	require.NoError(t, waitFor(t, done, "scan"))

	_, cached := memory.Get(context.Background(), "B-100")
	assert.False(t, cached, "record read before the invalidation must not be cached")

	_, err = svc.Resolve(context.Background(), "B-100")
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.calls.Load())
	_, cached = memory.Get(context.Background(), "B-100")
	assert.True(t, cached, "a lookup started after the invalidation is cached")
}
