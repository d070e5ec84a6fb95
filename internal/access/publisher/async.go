// Package publisher hands access events to the broker off the request path.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"badgegate/pkg/platform/sentinel"
)

// Publisher delivers one encoded event.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

var (
	// ErrQueueFull is returned when the shard for a key has no free slot.
	ErrQueueFull = errors.New("publish queue full")
	// ErrClosed is returned after Close has been called.
	ErrClosed = sentinel.ErrClosed
)

type envelope struct {
	topic    string
	key      string
	payload  []byte
	enqueued time.Time
}

// Async queues events and delivers them from background workers. Each key maps
// to one shard served by one worker, so events for a badge are delivered in
// the order they were accepted. Publish never blocks.
type Async struct {
	next    Publisher
	logger  *slog.Logger
	metrics *Metrics
	// lossLog limits error logs for abandoned events during broker outages
	lossLog *rate.Limiter

	workers      int
	queueSize    int
	maxRetries   int
	retryInitial time.Duration
	retryMax     time.Duration

	mu     sync.RWMutex
	closed bool
	shards []chan envelope

	// ctx bounds delivery; cancelled when Close gives up draining
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Async publisher.
type Option func(*Async)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Async) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(a *Async) {
		a.metrics = m
	}
}

// WithWorkers sets the number of shards and workers.
func WithWorkers(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithQueueSize sets the total queue capacity, split across shards.
func WithQueueSize(n int) Option {
	return func(a *Async) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithRetry sets how many times a failed delivery is retried and the
// exponential backoff bounds between attempts.
func WithRetry(maxRetries int, initial, maxInterval time.Duration) Option {
	return func(a *Async) {
		if maxRetries >= 0 {
			a.maxRetries = maxRetries
		}
		if initial > 0 {
			a.retryInitial = initial
		}
		if maxInterval > 0 {
			a.retryMax = maxInterval
		}
	}
}

// NewAsync starts the workers. Call Close to stop them.
func NewAsync(next Publisher, opts ...Option) *Async {
	a := &Async{
		next:         next,
		logger:       slog.Default(),
		lossLog:      rate.NewLimiter(rate.Every(time.Second), 5),
		workers:      4,
		queueSize:    4096,
		maxRetries:   5,
		retryInitial: 100 * time.Millisecond,
		retryMax:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	perShard := a.queueSize / a.workers
	if perShard < 1 {
		perShard = 1
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.shards = make([]chan envelope, a.workers)
	for i := range a.shards {
		a.shards[i] = make(chan envelope, perShard)
		a.wg.Add(1)
		go a.run(a.shards[i])
	}
	return a
}

// Publish enqueues the event. The caller's context is not used for delivery.
func (a *Async) Publish(_ context.Context, topic, key string, payload []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped("closed")
		return ErrClosed
	}

	env := envelope{topic: topic, key: key, payload: payload, enqueued: time.Now()}
	select {
	case a.shards[a.shardFor(key)] <- env:
		if a.metrics != nil {
			a.metrics.Enqueued.Inc()
			a.metrics.QueueDepth.Inc()
		}
		return nil
	default:
		a.dropped("queue_full")
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered. If
// ctx expires first, in-flight retries are aborted and every event not yet
// delivered is counted as lost before Close returns.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	for _, shard := range a.shards {
		close(shard)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		// workers now drop what is left without calling the broker
		<-done
		return fmt.Errorf("drain access events: %w", ctx.Err())
	}
}

func (a *Async) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(a.shards)))
}

func (a *Async) run(shard <-chan envelope) {
	defer a.wg.Done()
	for env := range shard {
		if a.metrics != nil {
			a.metrics.QueueDepth.Dec()
		}
		a.deliver(env)
	}
}

func (a *Async) deliver(env envelope) {
	if err := a.ctx.Err(); err != nil {
		a.lose(env, 0, err)
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retryInitial
	policy.MaxInterval = a.retryMax
	policy.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		if attempts > 0 && a.metrics != nil {
			a.metrics.Retries.Inc()
		}
		attempts++
		return a.next.Publish(a.ctx, env.topic, env.key, env.payload)
	}
	notify := func(err error, wait time.Duration) {
		a.logger.Debug("access event delivery failed, retrying",
			"badge_id", env.key,
			"attempt", attempts,
			"retry_in", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(a.maxRetries)), a.ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		a.lose(env, attempts, err)
		return
	}

	if a.metrics != nil {
		a.metrics.Delivered.Inc()
		a.metrics.DeliveryLatency.Observe(time.Since(env.enqueued).Seconds())
	}
}

func (a *Async) dropped(reason string) {
	if a.metrics != nil {
		a.metrics.Dropped.WithLabelValues(reason).Inc()
	}
}

func (a *Async) lose(env envelope, attempts int, err error) {
	if a.metrics != nil {
		a.metrics.Lost.Inc()
	}
	if a.lossLog.Allow() {
		a.logger.Error("access event lost",
			"badge_id", env.key,
			"topic", env.topic,
			"attempts", attempts,
			"error", err,
		)
	}
}
