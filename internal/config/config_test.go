package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://a.test", []string{"https://a.test"}},
		{" https://a.test , ,https://b.test ", []string{"https://a.test", "https://b.test"}},
	}
	for _, tc := range tests {
		if got := parseOrigins(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseOrigins(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadEngineSettings(t *testing.T) {
	t.Setenv("EXPIRY_POLICY", "advance")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("CHECKPOINT_EVERY_TICKS", "4")
	t.Setenv("ENGINE_LEASE_SECONDS", "bogus")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.ExpiryPolicy != "advance" {
		t.Errorf("ExpiryPolicy = %q", cfg.ExpiryPolicy)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.CheckpointEveryTicks != 4 {
		t.Errorf("CheckpointEveryTicks = %d", cfg.CheckpointEveryTicks)
	}
	if cfg.EngineLease != 10*time.Second {
		t.Errorf("EngineLease = %v, want fallback 10s", cfg.EngineLease)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ModuleContentKey("m1"); got != "module:m1:content" {
		t.Errorf("ModuleContentKey = %q", got)
	}
	if got := CacheKey.EngineLeaseKey("s1"); got != "session:s1:engine_lease" {
		t.Errorf("EngineLeaseKey = %q", got)
	}
}
