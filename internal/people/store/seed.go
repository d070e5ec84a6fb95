package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"badgegate/internal/people"
)

// Saver is implemented by every store that can be seeded.
type Saver interface {
	Save(ctx context.Context, p people.Person) error
}

// DevPeople is the fixture set loaded in dev mode.
func DevPeople() []people.Person {
	return []people.Person{
		{ID: uuid.MustParse("3f0c1d3e-8d7a-4c1b-9a51-0d6a1c6f1001"), BadgeID: "B-100", FullName: "Ada Martin", Role: "staff", Active: true},
		{ID: uuid.MustParse("3f0c1d3e-8d7a-4c1b-9a51-0d6a1c6f1002"), BadgeID: "B-200", FullName: "Louis Bernard", Role: "student", Active: true},
		{ID: uuid.MustParse("3f0c1d3e-8d7a-4c1b-9a51-0d6a1c6f1003"), BadgeID: "B-300", FullName: "Claire Dubois", Role: "contractor", Active: false},
	}
}

// SeedDev upserts DevPeople into s.
func SeedDev(ctx context.Context, s Saver) error {
	for _, p := range DevPeople() {
		if err := s.Save(ctx, p); err != nil {
			return fmt.Errorf("seed %s: %w", p.BadgeID, err)
		}
	}
	return nil
}
