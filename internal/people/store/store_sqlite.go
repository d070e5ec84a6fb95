package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"badgegate/internal/people"
	"badgegate/pkg/platform/sentinel"
)

// SQLiteStore is the embedded single-node person store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite wraps an opened SQLite database (see internal/platform/sqlite).
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) FindByBadgeID(ctx context.Context, badgeID string) (people.Person, error) {
	var p people.Person
	err := s.db.QueryRowContext(ctx, selectPerson+` WHERE badge_id = ?;`, badgeID).
		Scan(&p.ID, &p.BadgeID, &p.FullName, &p.Role, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return people.Person{}, sentinel.ErrNotFound
		}
		return people.Person{}, fmt.Errorf("find person by badge: %w: %w", sentinel.ErrUnavailable, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]people.Person, error) {
	rows, err := s.db.QueryContext(ctx, selectPerson+` ORDER BY badge_id;`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []people.Person{}
	for rows.Next() {
		var p people.Person
		if err := rows.Scan(&p.ID, &p.BadgeID, &p.FullName, &p.Role, &p.Active); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}

// Save upserts a person by badge id.
func (s *SQLiteStore) Save(ctx context.Context, p people.Person) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO registered_people (id, badge_id, full_name, role, is_active)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(badge_id) DO UPDATE SET
  full_name = excluded.full_name,
  role = excluded.role,
  is_active = excluded.is_active;
`, p.ID.String(), p.BadgeID, p.FullName, p.Role, p.Active)
	if err != nil {
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
