package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenCache keeps a token → offer id index in Redis so public response
// lookups skip the database on the hot path. It is advisory: a miss falls
// through to the store, and a nil cache disables itself.
type TokenCache struct {
	redis *redis.Client
}

// NewTokenCache creates a cache, or nil when Redis is not configured.
func NewTokenCache(client *redis.Client) *TokenCache {
	if client == nil {
		return nil
	}
	return &TokenCache{redis: client}
}

func (c *TokenCache) key(token string) string {
	return "waitlist:token:" + token
}

// Get resolves a token to an offer id. ok is false on miss or error.
func (c *TokenCache) Get(ctx context.Context, token string) (uuid.UUID, bool) {
	if c == nil {
		return uuid.Nil, false
	}
	val, err := c.redis.Get(ctx, c.key(token)).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Put indexes a token for ttl. Errors are swallowed: the store remains the
// source of truth.
func (c *TokenCache) Put(ctx context.Context, token string, offerID uuid.UUID, ttl time.Duration) {
	if c == nil {
		return
	}
	_ = c.redis.Set(ctx, c.key(token), offerID.String(), ttl).Err()
}

// Invalidate drops a token once its offer has been responded to.
func (c *TokenCache) Invalidate(ctx context.Context, token string) {
	if c == nil {
		return
	}
	_ = c.redis.Del(ctx, c.key(token)).Err()
}
