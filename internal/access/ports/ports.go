// Package ports defines the interfaces the access service depends on.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks PersonStore,Cache,Publisher

import (
	"context"

	"badgegate/internal/people"
)

// PersonStore is the authoritative source of registered people.
type PersonStore interface {
	// FindByBadgeID returns sentinel.ErrNotFound when no person holds the badge.
	FindByBadgeID(ctx context.Context, badgeID string) (people.Person, error)

	// ListAll returns every registered person.
	ListAll(ctx context.Context) ([]people.Person, error)
}

// Cache memoizes store lookups. Failures are reported as misses.
type Cache interface {
	Get(ctx context.Context, badgeID string) (people.Person, bool)
	Put(ctx context.Context, badgeID string, p people.Person)
}

// GuardedCache is a Cache that can refuse a write when the badge may have been
// invalidated after the store lookup began. The service checks for it at
// runtime; plain caches are written unconditionally.
type GuardedCache interface {
	Cache
	Generation() uint64
	PutIfCurrent(ctx context.Context, badgeID string, p people.Person, gen uint64) bool
}

// Publisher delivers an encoded event to a topic, keyed for ordering.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}
