package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DedupLock is an advisory lock around the walk-in dedup-then-create
// sequence. Two simultaneous submissions for the same person would otherwise
// both miss the dedup search and create duplicate guests; the lock
// serializes them per (account, normalized phone-or-name) key.
type DedupLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewDedupLock(client *redis.Client, ttl time.Duration) *DedupLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DedupLock{Client: client, TTL: ttl}
}

func lockKey(accountID, dedupKey string) string {
	return fmt.Sprintf("dedup:%s:%s", accountID, dedupKey)
}

// Acquire takes the lock for the given dedup key. The token identifies the
// holder so only the acquiring request can release it. Returns false if
// another submission already holds the lock.
func (l *DedupLock) Acquire(ctx context.Context, accountID, dedupKey, token string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(accountID, dedupKey), token, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock error: %w", err)
	}
	return ok, nil
}

// Release frees the lock if the token still matches the holder. A lock that
// expired or was taken over by someone else is left alone.
func (l *DedupLock) Release(ctx context.Context, accountID, dedupKey, token string) error {
	key := lockKey(accountID, dedupKey)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
