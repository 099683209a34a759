package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*TokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenCache(client), mr
}

func TestTokenCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	offerID := uuid.New()

	_, ok := cache.Get(ctx, "tok")
	assert.False(t, ok)

	cache.Put(ctx, "tok", offerID, time.Minute)

	got, ok := cache.Get(ctx, "tok")
	require.True(t, ok)
	assert.Equal(t, offerID, got)

	cache.Invalidate(ctx, "tok")
	_, ok = cache.Get(ctx, "tok")
	assert.False(t, ok)
}

func TestTokenCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "tok", uuid.New(), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "tok")
	assert.False(t, ok)
}

func TestTokenCacheNilIsDisabled(t *testing.T) {
	var cache *TokenCache
	ctx := context.Background()

	assert.Nil(t, NewTokenCache(nil))

	// All operations are no-ops on a nil cache.
	cache.Put(ctx, "tok", uuid.New(), time.Minute)
	_, ok := cache.Get(ctx, "tok")
	assert.False(t, ok)
	cache.Invalidate(ctx, "tok")
}

func TestTokenCacheIgnoresCorruptValues(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("waitlist:token:tok", "not-a-uuid"))

	_, ok := cache.Get(ctx, "tok")
	assert.False(t, ok)
}
