package bastion

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// maxQuotaCacheTTL bounds how long a decision involving a quota-bearing
// grant may be served from cache.
const maxQuotaCacheTTL = 5 * time.Second

// Config holds configuration for the Bastion engine.
type Config struct {
	// CacheTTL is the time-to-live for cached decisions. Zero disables
	// caching even when a cache is configured.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" envconfig:"CACHE_TTL" default:"30s"`

	// QuotaCacheTTL is the time-to-live for decisions that involved a
	// quota-bearing grant. Values above 5s are clamped.
	QuotaCacheTTL time.Duration `json:"quota_cache_ttl,omitempty" envconfig:"QUOTA_CACHE_TTL" default:"2s"`

	// DecideTimeout applies when the caller's context carries no deadline.
	DecideTimeout time.Duration `json:"decide_timeout,omitempty" envconfig:"DECIDE_TIMEOUT" default:"250ms"`

	// RoleWalkTimeout bounds a role hierarchy lookup. Lookups are shared
	// between concurrent deciders and run detached from any single caller's
	// deadline; each caller still gives up when its own deadline passes.
	RoleWalkTimeout time.Duration `json:"role_walk_timeout,omitempty" envconfig:"ROLE_WALK_TIMEOUT" default:"5s"`

	// MaxRoleDepth caps role hierarchy traversal. Defaults to 32.
	MaxRoleDepth int `json:"max_role_depth,omitempty" envconfig:"MAX_ROLE_DEPTH" default:"32"`

	// StrictResourceTypes rejects permissions whose resource type is not
	// registered. When false unknown types are registered on the fly.
	StrictResourceTypes bool `json:"strict_resource_types,omitempty" envconfig:"STRICT_RESOURCE_TYPES" default:"false"`

	// CacheMaxSize bounds the in-memory decision cache.
	CacheMaxSize int `json:"cache_max_size,omitempty" envconfig:"CACHE_MAX_SIZE" default:"10000"`

	// RedisAddr selects the Redis decision cache when set.
	RedisAddr string `json:"redis_addr,omitempty" envconfig:"REDIS_ADDR"`

	// RedisPrefix namespaces Redis keys.
	RedisPrefix string `json:"redis_prefix,omitempty" envconfig:"REDIS_PREFIX" default:"bastion"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:      30 * time.Second,
		QuotaCacheTTL: 2 * time.Second,
		DecideTimeout:   250 * time.Millisecond,
		RoleWalkTimeout: 5 * time.Second,
		MaxRoleDepth:    32,
		CacheMaxSize:    10000,
		RedisPrefix:     "bastion",
	}
}

// LoadConfig reads BASTION_* environment variables on top of the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("bastion", &cfg); err != nil {
		return Config{}, fmt.Errorf("bastion: load config: %w", err)
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.QuotaCacheTTL > maxQuotaCacheTTL {
		c.QuotaCacheTTL = maxQuotaCacheTTL
	}
	if c.QuotaCacheTTL < 0 {
		c.QuotaCacheTTL = 0
	}
	if c.DecideTimeout <= 0 {
		c.DecideTimeout = d.DecideTimeout
	}
	if c.RoleWalkTimeout <= 0 {
		c.RoleWalkTimeout = d.RoleWalkTimeout
	}
	if c.MaxRoleDepth <= 0 {
		c.MaxRoleDepth = d.MaxRoleDepth
	}
	if c.CacheMaxSize <= 0 {
		c.CacheMaxSize = d.CacheMaxSize
	}
	return c
}
