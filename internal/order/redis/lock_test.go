package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-backoffice/internal/logger"
)

// setupTestRedis creates a Redis client backed by miniredis so no real
// server is needed.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })

	return client
}

func TestLock_SecondCallerLoses(t *testing.T) {
	lock := NewSubmitLock(setupTestRedis(t), logger.NewLogger())
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Lock(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different order is an independent lock.
	ok, err = lock.Lock(ctx, "order-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlock_FreesTheLock(t *testing.T) {
	lock := NewSubmitLock(setupTestRedis(t), logger.NewLogger())
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "order-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Unlock(ctx, "order-1"))

	ok, err = lock.Lock(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlock_MissingKeyIsNotAnError(t *testing.T) {
	lock := NewSubmitLock(setupTestRedis(t), logger.NewLogger())
	assert.NoError(t, lock.Unlock(context.Background(), "never-locked"))
}

func TestLock_TTLFromEnvironment(t *testing.T) {
	client := setupTestRedis(t)
	lock := NewSubmitLock(client, logger.NewLogger())
	t.Setenv("SUBMIT_LOCK_TTL_SECONDS", "5")

	ok, err := lock.Lock(context.Background(), "order-1")
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := client.TTL(context.Background(), "payment_submit_lock:order-1").Result()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, ttl)
}

// TestLock_ConcurrentSubmitters hammers one order from many goroutines;
// exactly one may win.
func TestLock_ConcurrentSubmitters(t *testing.T) {
	lock := NewSubmitLock(setupTestRedis(t), logger.NewLogger())
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lock.Lock(ctx, "order-1")
			if err != nil {
				t.Errorf("lock error: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
