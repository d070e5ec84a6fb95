package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieredCache(t *testing.T) {
	ctx := context.Background()

	t.Run("remote hit is promoted to local", func(t *testing.T) {
		local := NewMemory(10, time.Minute)
		remote := NewMemory(10, time.Minute)
		tiered := NewTiered(local, remote)
		p := testPerson("B-1", true)
		remote.Put(ctx, "B-1", p)

		got, ok := tiered.Get(ctx, "B-1")
		require.True(t, ok)
		assert.Equal(t, p, got)

		promoted, ok := local.Get(ctx, "B-1")
		require.True(t, ok)
		assert.Equal(t, p, promoted)
	})

	t.Run("put writes both layers", func(t *testing.T) {
		local := NewMemory(10, time.Minute)
		remote := NewMemory(10, time.Minute)
		tiered := NewTiered(local, remote)

		tiered.Put(ctx, "B-1", testPerson("B-1", false))

		assert.Equal(t, 1, local.Len())
		assert.Equal(t, 1, remote.Len())
	})

	t.Run("invalidate clears both layers", func(t *testing.T) {
		local := NewMemory(10, time.Minute)
		remote := NewMemory(10, time.Minute)
		tiered := NewTiered(local, remote)
		tiered.Put(ctx, "B-1", testPerson("B-1", true))

		tiered.Invalidate(ctx, "B-1")

		_, ok := tiered.Get(ctx, "B-1")
		assert.False(t, ok)
		assert.Zero(t, local.Len())
		assert.Zero(t, remote.Len())
	})

	t.Run("miss in both layers", func(t *testing.T) {
		tiered := NewTiered(NewMemory(10, time.Minute), None{})

		_, ok := tiered.Get(ctx, "B-404")
		assert.False(t, ok)
	})
}
