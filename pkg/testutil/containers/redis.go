//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/redis"

	"badgegate/internal/platform/config"
	platformredis "badgegate/internal/platform/redis"
)

// RedisContainer is a throwaway Redis with a connected client.
type RedisContainer struct {
	*redis.RedisContainer
	URL    string
	Client *platformredis.Client
}

// NewRedisContainer starts Redis and connects through the platform client,
// so integration tests use the same option parsing as the server.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	rc, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	stop := func() { _ = rc.Terminate(ctx) }

	url, err := rc.ConnectionString(ctx)
	if err != nil {
		stop()
		t.Fatalf("redis connection string: %v", err)
	}
	client, err := platformredis.New(ctx, config.RedisConfig{URL: url})
	if err != nil {
		stop()
		t.Fatalf("connect redis: %v", err)
	}
	return &RedisContainer{RedisContainer: rc, URL: url, Client: client}
}

// FlushAll empties every database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
