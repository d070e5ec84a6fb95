package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"badgegate/internal/people"
	"badgegate/pkg/platform/circuit"
)

const (
	layerRedis = "redis"

	// Redis key prefix for cached people
	personKeyPrefix = "people:badge:"
)

type cachedPerson struct {
	ID       uuid.UUID `json:"id"`
	BadgeID  string    `json:"badge_id"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	Active   bool      `json:"active"`
}

// Redis shares cached people across service instances. A circuit breaker
// stops calling Redis while it keeps failing; skipped calls count as misses.
type Redis struct {
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithRedisLogger sets a logger for degraded-mode reporting.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(c *Redis) {
		c.logger = logger
	}
}

// WithRedisMetrics sets the metrics collector.
func WithRedisMetrics(m *Metrics) RedisOption {
	return func(c *Redis) {
		c.metrics = m
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) RedisOption {
	return func(c *Redis) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewRedis constructs a Redis-backed cache with entries expiring after ttl.
func NewRedis(client redis.Cmdable, ttl time.Duration, opts ...RedisOption) *Redis {
	c := &Redis{
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("redis-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func personKey(badgeID string) string {
	return personKeyPrefix + badgeID
}

func (c *Redis) Get(ctx context.Context, badgeID string) (people.Person, bool) {
	if !c.breaker.Allow() {
		c.metrics.skipped(layerRedis, "get")
		return people.Person{}, false
	}

	raw, err := c.client.Get(ctx, personKey(badgeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.succeeded()
		c.metrics.miss(layerRedis)
		return people.Person{}, false
	}
	if err != nil {
		c.failed(ctx, "get", badgeID, err)
		return people.Person{}, false
	}
	c.succeeded()

	var cp cachedPerson
	if err := json.Unmarshal(raw, &cp); err != nil || cp.BadgeID != badgeID {
		// unreadable or foreign entry: drop it and go to the store
		c.metrics.failed(layerRedis, "decode")
		c.warn(ctx, "discarding unusable cache entry", badgeID, err)
		_ = c.client.Del(ctx, personKey(badgeID)).Err()
		return people.Person{}, false
	}

	c.metrics.hit(layerRedis)
	return people.Person{
		ID:       cp.ID,
		BadgeID:  cp.BadgeID,
		FullName: cp.FullName,
		Role:     cp.Role,
		Active:   cp.Active,
	}, true
}

func (c *Redis) Put(ctx context.Context, badgeID string, p people.Person) {
	if !c.breaker.Allow() {
		c.metrics.skipped(layerRedis, "put")
		return
	}
	raw, err := json.Marshal(cachedPerson{
		ID:       p.ID,
		BadgeID:  p.BadgeID,
		FullName: p.FullName,
		Role:     p.Role,
		Active:   p.Active,
	})
	if err != nil {
		c.metrics.failed(layerRedis, "encode")
		return
	}
	if err := c.client.Set(ctx, personKey(badgeID), raw, c.ttl).Err(); err != nil {
		c.failed(ctx, "put", badgeID, err)
		return
	}
	c.succeeded()
}

// Invalidate deletes the entry even while the breaker is open.
func (c *Redis) Invalidate(ctx context.Context, badgeID string) {
	if err := c.client.Del(ctx, personKey(badgeID)).Err(); err != nil {
		c.failed(ctx, "invalidate", badgeID, err)
		return
	}
	c.succeeded()
}

func (c *Redis) succeeded() {
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.Info("redis cache recovered, circuit closed")
	}
}

func (c *Redis) failed(ctx context.Context, op, badgeID string, err error) {
	c.metrics.failed(layerRedis, op)
	if ctx.Err() != nil {
		// the caller gave up; says nothing about Redis health
		if c.logger != nil {
			c.logger.DebugContext(ctx, "redis cache "+op+" abandoned by caller",
				"badge_id", badgeID,
				"error", err,
			)
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "redis cache failing, circuit opened",
			"op", op,
			"error", err,
		)
		return
	}
	c.warn(ctx, "redis cache "+op+" failed, treating as miss", badgeID, err)
}

func (c *Redis) warn(ctx context.Context, msg, badgeID string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg,
		"badge_id", badgeID,
		"error", err,
	)
}
