package bastion

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BASTION_CACHE_TTL", "10s")
	t.Setenv("BASTION_QUOTA_CACHE_TTL", "1m")
	t.Setenv("BASTION_STRICT_RESOURCE_TYPES", "true")
	t.Setenv("BASTION_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Fatalf("expected cache ttl 10s, got %v", cfg.CacheTTL)
	}
	if cfg.QuotaCacheTTL != maxQuotaCacheTTL {
		t.Fatalf("expected quota ttl clamped to %v, got %v", maxQuotaCacheTTL, cfg.QuotaCacheTTL)
	}
	if !cfg.StrictResourceTypes {
		t.Fatal("expected strict resource types")
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisPrefix != "bastion" {
		t.Fatalf("unexpected redis settings: %q %q", cfg.RedisAddr, cfg.RedisPrefix)
	}
	if cfg.DecideTimeout != 250*time.Millisecond {
		t.Fatalf("expected default decide timeout, got %v", cfg.DecideTimeout)
	}
	if cfg.RoleWalkTimeout != 5*time.Second {
		t.Fatalf("expected default role walk timeout, got %v", cfg.RoleWalkTimeout)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("BASTION_DECIDE_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}
