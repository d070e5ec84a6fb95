package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"badgegate/internal/people"
	"badgegate/pkg/platform/sentinel"
)

const selectPerson = `SELECT id, badge_id, full_name, role, is_active FROM registered_people`

// PostgresStore reads people from the registered_people table. The schema is
// owned by the system of record; this store never writes outside tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed person store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByBadgeID(ctx context.Context, badgeID string) (people.Person, error) {
	var p people.Person
	err := s.pool.QueryRow(ctx, selectPerson+` WHERE badge_id = $1`, badgeID).
		Scan(&p.ID, &p.BadgeID, &p.FullName, &p.Role, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return people.Person{}, sentinel.ErrNotFound
		}
		return people.Person{}, fmt.Errorf("find person by badge: %w: %w", sentinel.ErrUnavailable, err)
	}
	return p, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]people.Person, error) {
	rows, err := s.pool.Query(ctx, selectPerson+` ORDER BY badge_id`)
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
func (s *PostgresStore) Save(ctx context.Context, p people.Person) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registered_people (id, badge_id, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (badge_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active
	`, p.ID, p.BadgeID, p.FullName, p.Role, p.Active)
	if err != nil {
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
