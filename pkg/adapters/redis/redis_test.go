package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/xplanning/pkg/adapters/redis"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunResultCacheContract(t, redis.NewFromClient(client))
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunLockerContract(t, redis.NewLocker(client, "test:"))
}

func TestRedisCache_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	info := &policy.Info{PolicyKey: "p", QAValues: map[string]float64{"time": 4}}
	require.NoError(t, cache.Put(ctx, "k", info))

	keys, err := cache.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "k")

	// Fast forward miniredis for key expiration
	mr.FastForward(2 * time.Second)

	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	// The index is pruned against the wall clock, so wait past the expiry.
	time.Sleep(1200 * time.Millisecond)

	keys, err = cache.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisCache_Prefix(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "my-info", &policy.Info{PolicyKey: "p"}))

	assert.True(t, mr.Exists("custom:app:my-info"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	keys, err := cache.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-info"}, keys)

	require.NoError(t, cache.Delete(ctx, "my-info"))
	assert.False(t, mr.Exists("custom:app:my-info"))
	keys, err = cache.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr, client := newClient(t)
	cache := redis.NewFromClient(client)

	require.NoError(t, mr.Set(redis.DefaultPrefix+"bad", "{not json"))
	_, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrCacheMiss)
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "job", time.Second)
	require.NoError(t, err)

	// The lock expires and someone else takes it.
	mr.FastForward(2 * time.Second)
	other, err := locker.Lock(ctx, "job", time.Minute)
	require.NoError(t, err)

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("test:job"), "a stale unlock must not release the new holder")
	require.NoError(t, other(ctx))
	assert.False(t, mr.Exists("test:job"))
}
