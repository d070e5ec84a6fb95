package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"badgegate/internal/people"
)

const layerMemory = "memory"

// Memory is a bounded in-process LRU whose entries expire ttl after insertion.
// The TTL is the staleness window for a deactivated badge.
type Memory struct {
	lru     *expirable.LRU[string, people.Person]
	metrics *Metrics
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMemoryMetrics sets the metrics collector.
func WithMemoryMetrics(m *Metrics) MemoryOption {
	return func(c *Memory) {
		c.metrics = m
	}
}

// NewMemory creates an in-process cache holding at most maxEntries people.
func NewMemory(maxEntries int, ttl time.Duration, opts ...MemoryOption) *Memory {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	c := &Memory{lru: expirable.NewLRU[string, people.Person](maxEntries, nil, ttl)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Memory) Get(_ context.Context, badgeID string) (people.Person, bool) {
	p, ok := c.lru.Get(badgeID)
	if !ok {
		c.metrics.miss(layerMemory)
		return people.Person{}, false
	}
	c.metrics.hit(layerMemory)
	return p, true
}

func (c *Memory) Put(_ context.Context, badgeID string, p people.Person) {
	c.lru.Add(badgeID, p)
}

func (c *Memory) Invalidate(_ context.Context, badgeID string) {
	c.lru.Remove(badgeID)
}

// Len returns the number of live entries.
func (c *Memory) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Memory) Purge(context.Context) {
	c.lru.Purge()
}
