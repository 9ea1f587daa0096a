package extension

import (
	"time"

	"github.com/xraph/bastion"
)

// Config holds the Bastion extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bastion" or "bastion" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CacheTTL is the lifetime of cached decisions. Zero disables caching.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// QuotaCacheTTL is the lifetime of decisions involving quota-bearing
	// grants.
	QuotaCacheTTL time.Duration `json:"quota_cache_ttl" mapstructure:"quota_cache_ttl" yaml:"quota_cache_ttl"`

	// DecideTimeout bounds a decision when the request carries no deadline.
	DecideTimeout time.Duration `json:"decide_timeout" mapstructure:"decide_timeout" yaml:"decide_timeout"`

	// RoleWalkTimeout bounds a role hierarchy lookup shared by concurrent
	// decisions.
	RoleWalkTimeout time.Duration `json:"role_walk_timeout" mapstructure:"role_walk_timeout" yaml:"role_walk_timeout"`

	// CacheMaxSize bounds the in-process decision cache.
	CacheMaxSize int `json:"cache_max_size" mapstructure:"cache_max_size" yaml:"cache_max_size"`

	// RedisAddr switches the decision cache to Redis, shared by every
	// instance pointing at the same server.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// RedisPrefix namespaces the Redis keys (default: "bastion").
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix" yaml:"redis_prefix"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:      30 * time.Second,
		QuotaCacheTTL: 2 * time.Second,
		DecideTimeout:   250 * time.Millisecond,
		RoleWalkTimeout: 5 * time.Second,
		CacheMaxSize:    10000,
		RedisPrefix:     "bastion",
	}
}

// engineConfig maps the extension config onto the engine's. Zero fields
// fall back to the engine defaults.
func (c Config) engineConfig() bastion.Config {
	cfg := bastion.DefaultConfig()
	cfg.CacheTTL = c.CacheTTL
	if c.QuotaCacheTTL > 0 {
		cfg.QuotaCacheTTL = c.QuotaCacheTTL
	}
	if c.DecideTimeout > 0 {
		cfg.DecideTimeout = c.DecideTimeout
	}
	if c.RoleWalkTimeout > 0 {
		cfg.RoleWalkTimeout = c.RoleWalkTimeout
	}
	if c.CacheMaxSize > 0 {
		cfg.CacheMaxSize = c.CacheMaxSize
	}
	if c.RedisPrefix != "" {
		cfg.RedisPrefix = c.RedisPrefix
	}
	cfg.RedisAddr = c.RedisAddr
	return cfg
}
