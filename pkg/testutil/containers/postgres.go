//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const peopleSchema = `
CREATE TABLE IF NOT EXISTS registered_people (
	id        UUID PRIMARY KEY,
	badge_id  TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	role      TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE OR REPLACE FUNCTION notify_people_changed() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'DELETE' THEN
		PERFORM pg_notify('people_changed', OLD.badge_id);
		RETURN OLD;
	END IF;
	PERFORM pg_notify('people_changed', NEW.badge_id);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS registered_people_changed ON registered_people;
CREATE TRIGGER registered_people_changed
	AFTER INSERT OR UPDATE OR DELETE ON registered_people
	FOR EACH ROW EXECUTE FUNCTION notify_people_changed();
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// registered_people schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts PostgreSQL and applies the test schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("badgegate"),
		tcpostgres.WithUsername("badgegate"),
		tcpostgres.WithPassword("badgegate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres pool: %v", err)
	}

	if _, err := pool.Exec(ctx, peopleSchema); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Shared across suites by the Manager; Ryuk handles cleanup.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		Pool:      pool,
	}
}

// Reset empties the people table between tests.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `TRUNCATE registered_people`)
	return err
}
