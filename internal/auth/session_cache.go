package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// revokedKeyPrefix namespaces revoked-session entries in Redis.
const revokedKeyPrefix = "session_revoked:"

// SessionCache tracks revoked session tokens in Redis. Tokens are valid by
// signature alone; the cache only needs to remember explicit revocations
// until their natural expiry.
type SessionCache struct {
	Client *redis.Client
}

func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{Client: client}
}

// Revoke marks a token ID as revoked for the remaining token lifetime.
func (c *SessionCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if ttl <= 0 {
		// Already past expiry, nothing to remember.
		return nil
	}
	return c.Client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether a token ID has been revoked.
func (c *SessionCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if c.Client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}
	_, err := c.Client.Get(ctx, revokedKeyPrefix+tokenID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
