package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	for _, k := range []string{"RATE_LIMIT_ENABLED", "RATE_LIMIT_LIMIT", "RATE_LIMIT_WINDOW", "RATE_LIMIT_PREFIX"} {
		t.Setenv(k, "")
	}
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled {
		t.Errorf("Enabled = false, want true")
	}
	if cfg.Limit != 30 {
		t.Errorf("Limit = %d, want 30", cfg.Limit)
	}
	if cfg.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", cfg.Window)
	}
	if cfg.Prefix != "rl" {
		t.Errorf("Prefix = %q, want %q", cfg.Prefix, "rl")
	}
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_LIMIT", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_PREFIX", "checkin")

	cfg := LoadRateLimitConfig()
	if cfg.Enabled {
		t.Errorf("Enabled = true, want false")
	}
	if cfg.Limit != 5 {
		t.Errorf("Limit = %d, want 5", cfg.Limit)
	}
	if cfg.Window != 30*time.Second {
		t.Errorf("Window = %v, want 30s", cfg.Window)
	}
	if cfg.Prefix != "checkin" {
		t.Errorf("Prefix = %q, want %q", cfg.Prefix, "checkin")
	}
}

func TestLoadRateLimitConfigClampsInvalid(t *testing.T) {
	t.Setenv("RATE_LIMIT_LIMIT", "0")
	t.Setenv("RATE_LIMIT_WINDOW", "-5s")

	cfg := LoadRateLimitConfig()
	if cfg.Limit != 1 {
		t.Errorf("Limit = %d, want clamp to 1", cfg.Limit)
	}
	if cfg.Window != time.Minute {
		t.Errorf("Window = %v, want fallback 1m", cfg.Window)
	}
}
