package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/clock"
)

var epoch = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 42}

	_, gen, ok := c.Get(ctx, key)
	if ok {
		t.Fatal("expected cache miss")
	}

	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)
	got, _, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allowed {
		t.Fatal("expected allowed")
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 1}

	d := &bastion.Decision{DenialReasons: []string{bastion.ReasonNoGrant}}
	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, d, time.Minute)
	d.DenialReasons[0] = "mutated"

	got, _, _ := c.Get(ctx, key)
	got.DenialReasons[0] = "mutated again"

	again, _, _ := c.Get(ctx, key)
	if again.DenialReasons[0] != bastion.ReasonNoGrant {
		t.Fatalf("cached decision was mutated: %v", again.DenialReasons)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	c := NewMemory(WithClock(clk))
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 1}

	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, 30*time.Second)

	clk.Advance(29 * time.Second)
	if _, _, ok := c.Get(ctx, key); !ok {
		t.Fatal("expected hit before expiry")
	}
	clk.Advance(time.Second)
	if _, _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	k1 := bastion.CacheKey{UserID: "u1", Fingerprint: 1}
	k2 := bastion.CacheKey{UserID: "u2", Fingerprint: 1}

	for _, k := range []bastion.CacheKey{k1, k2} {
		_, gen, _ := c.Get(ctx, k)
		c.Set(ctx, k, gen, &bastion.Decision{Allowed: true}, time.Minute)
	}

	c.InvalidateUser(ctx, "u1")

	if _, _, ok := c.Get(ctx, k1); ok {
		t.Fatal("expected u1 invalidated")
	}
	if _, _, ok := c.Get(ctx, k2); !ok {
		t.Fatal("expected u2 still cached")
	}
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	k1 := bastion.CacheKey{UserID: "u1", Fingerprint: 1}
	k2 := bastion.CacheKey{UserID: "u2", Fingerprint: 2}

	for _, k := range []bastion.CacheKey{k1, k2} {
		_, gen, _ := c.Get(ctx, k)
		c.Set(ctx, k, gen, &bastion.Decision{Allowed: true}, time.Minute)
	}

	c.InvalidateAll(ctx)

	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
	if _, _, ok := c.Get(ctx, k2); ok {
		t.Fatal("expected miss after InvalidateAll")
	}
}

func TestMemoryCacheDropsStaleWrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 7}

	// A decision computed before an invalidation must not land.
	_, gen, _ := c.Get(ctx, key)
	c.InvalidateUser(ctx, "u1")
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)
	if _, _, ok := c.Get(ctx, key); ok {
		t.Fatal("stale write after InvalidateUser was stored")
	}

	_, gen, _ = c.Get(ctx, key)
	c.InvalidateAll(ctx)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)
	if _, _, ok := c.Get(ctx, key); ok {
		t.Fatal("stale write after InvalidateAll was stored")
	}
}

func TestMemoryCachePrunesUserGenerations(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	c := NewMemory(WithMaxSize(4), WithClock(clk))

	for i := range 50 {
		c.InvalidateUser(ctx, "user-"+strconv.Itoa(i))
	}
	if n := c.TrackedUsers(); n > 5 {
		t.Fatalf("expected user generations to stay bounded, tracking %d", n)
	}

	// A write computed before an invalidation must stay stale after the
	// user's generation has been pruned.
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 9}
	_, gen, _ := c.Get(ctx, key)
	c.InvalidateUser(ctx, "u1")
	for i := range 50 {
		c.InvalidateUser(ctx, "other-"+strconv.Itoa(i))
	}
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, time.Minute)
	if _, _, ok := c.Get(ctx, key); ok {
		t.Fatal("stale write accepted after pruning")
	}

	// Live entries of never-invalidated users survive a prune.
	live := bastion.CacheKey{UserID: "steady", Fingerprint: 1}
	_, gen, _ = c.Get(ctx, live)
	c.Set(ctx, live, gen, &bastion.Decision{Allowed: true}, time.Minute)
	for i := range 50 {
		c.InvalidateUser(ctx, "churn-"+strconv.Itoa(i))
	}
	if _, _, ok := c.Get(ctx, live); !ok {
		t.Fatal("live entry lost when pruning other users")
	}
}

func TestMemoryCacheZeroTTLNotStored(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := bastion.CacheKey{UserID: "u1", Fingerprint: 1}

	_, gen, _ := c.Get(ctx, key)
	c.Set(ctx, key, gen, &bastion.Decision{Allowed: true}, 0)
	if c.Len() != 0 {
		t.Fatal("expected zero TTL write to be skipped")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(3))

	for i := range 10 {
		k := bastion.CacheKey{UserID: "u1", Fingerprint: uint64(i)}
		_, gen, _ := c.Get(ctx, k)
		c.Set(ctx, k, gen, &bastion.Decision{Allowed: true}, time.Minute)
	}
	if c.Len() > 3 {
		t.Fatalf("expected at most 3 entries, got %d", c.Len())
	}
}

func TestMemoryCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := bastion.CacheKey{UserID: "u1", Fingerprint: uint64(i % 5)}
			_, gen, _ := c.Get(ctx, k)
			c.Set(ctx, k, gen, &bastion.Decision{Allowed: true}, time.Minute)
			if i%10 == 0 {
				c.InvalidateUser(ctx, "u1")
			}
		}(i)
	}
	wg.Wait()
}
