// Package cache memoizes person lookups by badge id. Every implementation
// degrades failures to a miss; none of them returns an error to the caller.
package cache

import (
	"context"

	"badgegate/internal/people"
)

// Cache is implemented by every backend in this package.
type Cache interface {
	Get(ctx context.Context, badgeID string) (people.Person, bool)
	Put(ctx context.Context, badgeID string, p people.Person)
	Invalidate(ctx context.Context, badgeID string)
}

// None disables caching.
type None struct{}

func (None) Get(context.Context, string) (people.Person, bool) { return people.Person{}, false }
func (None) Put(context.Context, string, people.Person)         {}
func (None) Invalidate(context.Context, string)                 {}
