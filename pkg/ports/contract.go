package ports

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResultCacheContract verifies that a ResultCache implementation adheres to
// the interface contract.
func RunResultCacheContract(t *testing.T, cache ResultCache) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000000")

	sample := func() *policy.Info {
		return &policy.Info{
			PolicyKey:     "abc123",
			ObjectiveCost: 3.2,
			QAValues:      map[string]float64{"time": 2, "risk": 5},
			ScaledCosts:   map[string]float64{"time": 1.2, "risk": 2},
			EventCounts:   map[string]map[string]float64{"risk": {"collision": 0.5}},
		}
	}

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, sample()))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "abc123", got.PolicyKey)
		assert.Equal(t, 3.2, got.ObjectiveCost)
		assert.Equal(t, sample().QAValues, got.QAValues)
		assert.Equal(t, sample().ScaledCosts, got.ScaledCosts)
		assert.Equal(t, 0.5, got.EventCounts["risk"]["collision"])
		assert.Nil(t, got.Policy, "policies are not cached")
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := cache.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("Overwrite", func(t *testing.T) {
		info := sample()
		info.ObjectiveCost = 4
		require.NoError(t, cache.Put(ctx, key, info))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 4.0, got.ObjectiveCost)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, sample()))
		require.NoError(t, cache.Delete(ctx, key))

		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.NoError(t, cache.Delete(ctx, key), "deleting twice is not an error")
	})
}

// RunLockerContract verifies that a DistributedLocker implementation provides
// mutual exclusion and honours context cancellation.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405.000000")

	t.Run("Exclusive", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, key, 5*time.Second)
		assert.Error(t, err, "a held lock must not be acquired twice")

		require.NoError(t, unlock(ctx))

		unlock2, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err, "lock must be available after unlock")
		require.NoError(t, unlock2(ctx))
	})

	t.Run("Independent Keys", func(t *testing.T) {
		a, err := locker.Lock(ctx, key+"-a", time.Second)
		require.NoError(t, err)
		defer func() { _ = a(ctx) }()

		b, err := locker.Lock(ctx, key+"-b", time.Second)
		require.NoError(t, err)
		require.NoError(t, b(ctx))
	})

	t.Run("Serializes Holders", func(t *testing.T) {
		var inside, maxInside atomic.Int32
		done := make(chan error, 4)
		for i := 0; i < 4; i++ {
			go func() {
				unlock, err := locker.Lock(ctx, key+"-serial", 5*time.Second)
				if err != nil {
					done <- err
					return
				}
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inside.Add(-1)
				done <- unlock(ctx)
			}()
		}
		for i := 0; i < 4; i++ {
			require.NoError(t, <-done)
		}
		assert.Equal(t, int32(1), maxInside.Load())
	})
}
