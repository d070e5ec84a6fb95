package store

import (
	"context"
	"sort"
	"sync"

	"badgegate/internal/people"
	"badgegate/pkg/platform/sentinel"
)

// InMemoryStore keeps people keyed by badge id. Used for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	byBadge map[string]people.Person
}

// NewInMemory creates a store pre-populated with records.
func NewInMemory(records ...people.Person) *InMemoryStore {
	s := &InMemoryStore{byBadge: make(map[string]people.Person, len(records))}
	for _, p := range records {
		s.byBadge[p.BadgeID] = p
	}
	return s
}

func (s *InMemoryStore) FindByBadgeID(_ context.Context, badgeID string) (people.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byBadge[badgeID]
	if !ok {
		return people.Person{}, sentinel.ErrNotFound
	}
	return p, nil
}

// ListAll returns every person ordered by badge id.
func (s *InMemoryStore) ListAll(_ context.Context) ([]people.Person, error) {
	s.mu.RLock()
	out := make([]people.Person, 0, len(s.byBadge))
	for _, p := range s.byBadge {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

// Save inserts or replaces the person with the same badge id.
func (s *InMemoryStore) Save(_ context.Context, p people.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byBadge[p.BadgeID] = p
	return nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}
