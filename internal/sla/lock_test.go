package sla

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSweepLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder is refused until release", func(t *testing.T) {
		_, client := newLockTestClient(t)
		first := NewRedisSweepLock(client, time.Minute)
		second := NewRedisSweepLock(client, time.Minute)

		ok, err := first.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = second.Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, first.Release(ctx))

		ok, err = second.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release only removes own token", func(t *testing.T) {
		mr, client := newLockTestClient(t)
		first := NewRedisSweepLock(client, time.Minute)
		second := NewRedisSweepLock(client, time.Minute)

		ok, err := first.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		// First holder's TTL lapses and the second replica takes over.
		mr.FastForward(2 * time.Minute)
		ok, err = second.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		// The stale holder's release must not evict the new one.
		require.NoError(t, first.Release(ctx))
		ok, err = first.Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lock expires with its TTL", func(t *testing.T) {
		mr, client := newLockTestClient(t)
		lock := NewRedisSweepLock(client, 30*time.Second)

		ok, err := lock.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(time.Minute)

		other := NewRedisSweepLock(client, 30*time.Second)
		ok, err = other.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
