package bastion

import (
	"context"
	"time"
)

// Generation is the cache epoch observed at lookup. Global advances on any
// change that can affect every user (role graph, catalog, policies); User
// advances on changes to a single user's assignments or grants.
type Generation struct {
	Global uint64 `json:"global"`
	User   uint64 `json:"user"`
}

// CacheKey addresses a cached decision.
type CacheKey struct {
	UserID      string
	Fingerprint uint64
}

// Cache memoizes decisions. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns a cached decision if one exists for the current
	// generation. The current generation is returned on a miss so that the
	// caller can pass it to Set.
	Get(ctx context.Context, key CacheKey) (*Decision, Generation, bool)

	// Set stores d for ttl. Writes carrying a generation older than the
	// current one must be dropped: an invalidation happened after lookup.
	Set(ctx context.Context, key CacheKey, gen Generation, d *Decision, ttl time.Duration)

	// InvalidateUser discards every decision cached for userID.
	InvalidateUser(ctx context.Context, userID string)

	// InvalidateAll discards every cached decision.
	InvalidateAll(ctx context.Context)
}
