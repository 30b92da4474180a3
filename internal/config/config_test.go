package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SENTRA_AUTH_SECRET", "secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.AccessTTL != DefaultAccessTTL || cfg.RefreshTTL != DefaultRefreshTTL {
		t.Fatalf("TTL defaults not applied: %v / %v", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if cfg.RateWindow != DefaultRateWindow || cfg.RateMax != DefaultRateMax {
		t.Fatalf("rate defaults not applied: %v / %d", cfg.RateWindow, cfg.RateMax)
	}
	if cfg.TaskWorkers != DefaultTaskWorkers || cfg.TaskRetention != 0 {
		t.Fatalf("task defaults not applied: %d / %v", cfg.TaskWorkers, cfg.TaskRetention)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SENTRA_AUTH_SECRET", "secret")
	t.Setenv("SENTRA_ADDR", ":9090")
	t.Setenv("SENTRA_ACCESS_TTL", "15m")
	t.Setenv("SENTRA_REFRESH_TTL", "48h")
	t.Setenv("SENTRA_RATE_WINDOW", "30s")
	t.Setenv("SENTRA_RATE_MAX", "10")
	t.Setenv("SENTRA_TASK_WORKERS", "8")
	t.Setenv("SENTRA_TASK_RETENTION", "1h")
	t.Setenv("SENTRA_LOGIN_RATE", "0.5")
	t.Setenv("SENTRA_LOGIN_BURST", "3")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.AccessTTL != 15*time.Minute || cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RateWindow != 30*time.Second || cfg.RateMax != 10 {
		t.Fatalf("rate overrides not applied: %+v", cfg)
	}
	if cfg.TaskWorkers != 8 || cfg.TaskRetention != time.Hour {
		t.Fatalf("task overrides not applied: %+v", cfg)
	}
	if cfg.LoginRate != 0.5 || cfg.LoginBurst != 3 {
		t.Fatalf("throttle overrides not applied: %+v", cfg)
	}
}

func TestFromEnvBareSecondsDuration(t *testing.T) {
	t.Setenv("SENTRA_AUTH_SECRET", "secret")
	t.Setenv("SENTRA_RATE_WINDOW", "90")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.RateWindow != 90*time.Second {
		t.Fatalf("bare integer should be read as seconds, got %v", cfg.RateWindow)
	}
}

func TestFromEnvBadValues(t *testing.T) {
	cases := []struct{ key, value string }{
		{"SENTRA_ACCESS_TTL", "soon"},
		{"SENTRA_RATE_MAX", "many"},
		{"SENTRA_LOGIN_RATE", "fast"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv("SENTRA_AUTH_SECRET", "secret")
			t.Setenv(tc.key, tc.value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected parse error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Addr:        ":8080",
		AuthSecret:  "secret",
		AccessTTL:   30 * time.Minute,
		RefreshTTL:  7 * 24 * time.Hour,
		RateWindow:  time.Minute,
		RateMax:     100,
		TaskWorkers: 4,
		LoginRate:   1,
		LoginBurst:  5,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.AuthSecret = "" }, "SENTRA_AUTH_SECRET"},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }, "TTL"},
		{"refresh not longer", func(c *Config) { c.RefreshTTL = c.AccessTTL }, "refresh"},
		{"zero rate max", func(c *Config) { c.RateMax = 0 }, "rate limit"},
		{"zero workers", func(c *Config) { c.TaskWorkers = 0 }, "workers"},
		{"negative retention", func(c *Config) { c.TaskRetention = -time.Minute }, "retention"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
