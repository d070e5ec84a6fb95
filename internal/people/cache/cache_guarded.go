package cache

import (
	"context"
	"sync"

	"badgegate/internal/people"
)

// Guarded counts invalidations so that a store lookup which started before an
// invalidation does not write the record it read back into the cache.
//
//	gen := g.Generation()
//	p, err := store.FindByBadgeID(ctx, id)
//	g.PutIfCurrent(ctx, id, p, gen) // skipped if id was invalidated meanwhile
//
// The generation is global, so an invalidation of any badge skips every Put
// in flight at that moment. Those badges are simply loaded again on the next scan.
type Guarded struct {
	inner Cache

	mu  sync.RWMutex
	gen uint64
}

// NewGuarded wraps inner.
func NewGuarded(inner Cache) *Guarded {
	return &Guarded{inner: inner}
}

func (g *Guarded) Get(ctx context.Context, badgeID string) (people.Person, bool) {
	return g.inner.Get(ctx, badgeID)
}

// Put writes unconditionally.
func (g *Guarded) Put(ctx context.Context, badgeID string, p people.Person) {
	g.inner.Put(ctx, badgeID, p)
}

// Generation returns the current invalidation count.
func (g *Guarded) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gen
}

// PutIfCurrent writes p only if nothing was invalidated since gen was read.
// It reports whether the entry was written.
func (g *Guarded) PutIfCurrent(ctx context.Context, badgeID string, p people.Person, gen uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.gen != gen {
		return false
	}
	g.inner.Put(ctx, badgeID, p)
	return true
}

// Invalidate bumps the generation before evicting. A PutIfCurrent that passed
// its check has finished writing by then, so the eviction removes its entry.
func (g *Guarded) Invalidate(ctx context.Context, badgeID string) {
	g.bump()
	g.inner.Invalidate(ctx, badgeID)
}

// Purge bumps the generation and purges the wrapped cache when it supports it.
func (g *Guarded) Purge(ctx context.Context) {
	g.bump()
	if p, ok := g.inner.(interface{ Purge(context.Context) }); ok {
		p.Purge(ctx)
	}
}

func (g *Guarded) bump() {
	g.mu.Lock()
	g.gen++
	g.mu.Unlock()
}
