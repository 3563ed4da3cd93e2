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
)

// setupTestRedis creates a Redis client backed by miniredis so tests do not
// need a real Redis server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestAcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	lock := NewDedupLock(client, time.Minute)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "acct-1", "phone:+628123456789", "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquirer is refused while the lock is held.
	ok, err = lock.Acquire(ctx, "acct-1", "phone:+628123456789", "req-2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "acct-1", "phone:+628123456789", "req-1"))

	ok, err = lock.Acquire(ctx, "acct-1", "phone:+628123456789", "req-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocksAreScopedPerAccount(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	lock := NewDedupLock(client, time.Minute)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "acct-1", "name:siti", "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Same dedup key in a different account is independent.
	ok, err = lock.Acquire(ctx, "acct-2", "name:siti", "req-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseWithWrongTokenKeepsLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	lock := NewDedupLock(client, time.Minute)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "acct-1", "name:siti", "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "acct-1", "name:siti", "req-other"))

	// Still held by req-1.
	ok, err = lock.Acquire(ctx, "acct-1", "name:siti", "req-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseExpiredLockIsNoop(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	lock := NewDedupLock(client, time.Second)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "acct-1", "name:siti", "req-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	require.NoError(t, lock.Release(ctx, "acct-1", "name:siti", "req-1"))
}

func TestConcurrentAcquireOnlyOneWins(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	lock := NewDedupLock(client, time.Minute)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	wins := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			ok, err := lock.Acquire(ctx, "acct-1", "phone:+628123456789", token)
			if err == nil && ok {
				wins <- token
			}
		}(string(rune('a' + i)))
	}

	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent submission should win the lock")
}
