package cache

import (
	"context"

	"badgegate/internal/people"
)

// Tiered consults a fast local layer before a shared remote layer. Remote hits
// are copied into the local layer.
type Tiered struct {
	local  Cache
	remote Cache
}

// NewTiered combines local (L1) and remote (L2) caches.
func NewTiered(local, remote Cache) *Tiered {
	return &Tiered{local: local, remote: remote}
}

func (t *Tiered) Get(ctx context.Context, badgeID string) (people.Person, bool) {
	if p, ok := t.local.Get(ctx, badgeID); ok {
		return p, true
	}
	p, ok := t.remote.Get(ctx, badgeID)
	if !ok {
		return people.Person{}, false
	}
	t.local.Put(ctx, badgeID, p)
	return p, true
}

func (t *Tiered) Put(ctx context.Context, badgeID string, p people.Person) {
	t.local.Put(ctx, badgeID, p)
	t.remote.Put(ctx, badgeID, p)
}

func (t *Tiered) Invalidate(ctx context.Context, badgeID string) {
	t.remote.Invalidate(ctx, badgeID)
	t.local.Invalidate(ctx, badgeID)
}

// Purge drops the local layer. Remote entries still expire by TTL.
func (t *Tiered) Purge(ctx context.Context) {
	if p, ok := t.local.(interface{ Purge(context.Context) }); ok {
		p.Purge(ctx)
	}
}
