package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/bastion"
)

// Compile-time interface check.
var _ bastion.Cache = (*Redis)(nil)

// setIfCurrent stores an entry only if neither generation counter moved
// since the caller observed it.
//
// KEYS: global gen, user gen, entry. ARGV: global, user, payload, ttl ms.
var setIfCurrent = redis.NewScript(`
local g = tonumber(redis.call('GET', KEYS[1]) or '0')
local u = tonumber(redis.call('GET', KEYS[2]) or '0')
if g ~= tonumber(ARGV[1]) or u ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[3], ARGV[3], 'PX', ARGV[4])
return 1
`)

// Redis is a decision cache shared between engine instances. Generation
// counters live in Redis so an invalidation on one instance is observed by
// all of them.
//
// If an invalidation cannot be written the cache marks itself degraded and
// misses every lookup until a later global bump succeeds; stale entries are
// never served.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	logger   *slog.Logger
	degraded atomic.Bool
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix. The default is "bastion".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithLogger sets the logger used to report Redis failures.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis creates a cache backed by client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "bastion",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type redisEntry struct {
	Gen      bastion.Generation `json:"gen"`
	Decision *bastion.Decision  `json:"decision"`
}

func (r *Redis) globalKey() string { return r.prefix + ":gen" }
func (r *Redis) userKey(userID string) string { return r.prefix + ":gen:" + userID }
func (r *Redis) entryKey(k bastion.CacheKey) string {
	return r.prefix + ":d:" + k.UserID + ":" + strconv.FormatUint(k.Fingerprint, 16)
}

// Get implements bastion.Cache.
func (r *Redis) Get(ctx context.Context, key bastion.CacheKey) (*bastion.Decision, bastion.Generation, bool) {
	if r.degraded.Load() && !r.heal(ctx) {
		return nil, bastion.Generation{}, false
	}

	vals, err := r.client.MGet(ctx, r.globalKey(), r.userKey(key.UserID), r.entryKey(key)).Result()
	if err != nil {
		r.logger.Warn("bastion: redis cache get failed", slog.String("error", err.Error()))
		return nil, bastion.Generation{}, false
	}

	gen := bastion.Generation{Global: parseCounter(vals[0]), User: parseCounter(vals[1])}
	raw, ok := vals[2].(string)
	if !ok {
		return nil, gen, false
	}
	var e redisEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Decision == nil {
		return nil, gen, false
	}
	if e.Gen != gen {
		return nil, gen, false
	}
	return e.Decision, gen, true
}

// Set implements bastion.Cache.
func (r *Redis) Set(ctx context.Context, key bastion.CacheKey, gen bastion.Generation, d *bastion.Decision, ttl time.Duration) {
	if ttl <= 0 || r.degraded.Load() {
		return
	}
	payload, err := json.Marshal(redisEntry{Gen: gen, Decision: d})
	if err != nil {
		return
	}
	keys := []string{r.globalKey(), r.userKey(key.UserID), r.entryKey(key)}
	err = setIfCurrent.Run(ctx, r.client, keys,
		gen.Global, gen.User, payload, ttl.Milliseconds()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("bastion: redis cache set failed", slog.String("error", err.Error()))
	}
}

// InvalidateUser implements bastion.Cache.
func (r *Redis) InvalidateUser(ctx context.Context, userID string) {
	if err := r.client.Incr(ctx, r.userKey(userID)).Err(); err != nil {
		r.degrade(err)
	}
}

// InvalidateAll implements bastion.Cache.
func (r *Redis) InvalidateAll(ctx context.Context) {
	if err := r.client.Incr(ctx, r.globalKey()).Err(); err != nil {
		r.degrade(err)
	}
}

// Degraded reports whether a failed invalidation is still unrecovered.
func (r *Redis) Degraded() bool { return r.degraded.Load() }

func (r *Redis) degrade(err error) {
	r.degraded.Store(true)
	r.logger.Error("bastion: redis cache invalidation failed, bypassing cache",
		slog.String("error", err.Error()),
	)
}

// heal bumps the global generation, which supersedes whatever invalidation
// was lost, and leaves degraded mode on success.
func (r *Redis) heal(ctx context.Context) bool {
	if err := r.client.Incr(ctx, r.globalKey()).Err(); err != nil {
		return false
	}
	r.degraded.Store(false)
	r.logger.Info("bastion: redis cache recovered")
	return true
}

func parseCounter(v any) uint64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
