package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bastion"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, WithPrefix("test")), mr
}

func TestRedisCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 99}

	_, gen, ok := c.Get(ctx, key)
	require.False(t, ok)

	want := &bastion.Decision{
		Allowed:         true,
		MatchedGrantIDs: []string{"tgrant_01h455vb4pex5vsknk084sn02q"},
		EvaluatedAt:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	c.Set(ctx, key, gen, want, time.Minute)

	got, _, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.True(t, got.Allowed)
	assert.Equal(t, want.MatchedGrantIDs, got.MatchedGrantIDs)
	assert.True(t, want.EvaluatedAt.Equal(got.EvaluatedAt))
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 1}

	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, 2*time.Second)

	mr.FastForward(3 * time.Second)
	_, _, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)
	k1 := bastion.CacheKey{UserID: "u1", Fingerprint: 1}
	k2 := bastion.CacheKey{UserID: "u2", Fingerprint: 1}

	for _, k := range []bastion.CacheKey{k1, k2} {
		_, gen, _ := c.Get(ctx, k)
		c.Set(ctx, k, gen, &bastion.Decision{Allowed: true}, time.Minute)
	}

	c.InvalidateUser(ctx, "u1")

	_, _, ok := c.Get(ctx, k1)
	assert.False(t, ok, "u1 should be invalidated")
	_, _, ok = c.Get(ctx, k2)
	assert.True(t, ok, "u2 should still be cached")
}

func TestRedisCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 1}

	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)
	c.InvalidateAll(ctx)

	_, _, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCacheDropsStaleWrite(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 5}

	_, gen, _ := c.Get(ctx, key)
	c.InvalidateUser(ctx, "u1")
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)

	_, _, ok := c.Get(ctx, key)
	assert.False(t, ok, "write observed before invalidation must be dropped")
}

func TestRedisCacheSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = cl.Close() })
		return cl
	}
	a := NewRedis(newClient())
	b := NewRedis(newClient())
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 3}

	_, gen, _ := a.Get(ctx, key)
	a.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)

	_, _, ok := b.Get(ctx, key)
	require.True(t, ok)

	b.InvalidateUser(ctx, "u1")
	_, _, ok = a.Get(ctx, key)
	assert.False(t, ok, "invalidation on one instance must be seen by the other")
}

func TestRedisCacheDegradedAfterFailedInvalidation(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 8}

	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)

	mr.Close()
	c.InvalidateUser(ctx, "u1")
	require.True(t, c.Degraded())

	_, _, ok := c.Get(ctx, key)
	assert.False(t, ok)

	require.NoError(t, mr.Restart())
	_, _, ok = c.Get(ctx, key)
	assert.False(t, ok, "entry from before the lost invalidation must not be served")
	assert.False(t, c.Degraded())
}
