package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAddr          = ":8080"
	DefaultAccessTTL     = 30 * time.Minute
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultRateWindow    = 60 * time.Second
	DefaultRateMax       = 100
	DefaultTaskWorkers   = 4
	DefaultTaskRetention = time.Duration(0) // keep terminal tasks until deleted
	DefaultLoginRate     = 1.0              // attempts per second per email
	DefaultLoginBurst    = 5
)

// Config carries every runtime option recognized by the service. It is built
// once in main and handed to constructors; components never read the
// environment themselves.
type Config struct {
	Addr          string
	AuthSecret    string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RateWindow    time.Duration
	RateMax       int
	TaskWorkers   int
	TaskRetention time.Duration
	LoginRate     float64
	LoginBurst    int
	PostgresDSN   string
}

// FromEnv reads SENTRA_* variables and validates the result.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("SENTRA_ADDR", DefaultAddr),
		AuthSecret:    strings.TrimSpace(os.Getenv("SENTRA_AUTH_SECRET")),
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
		RateWindow:    DefaultRateWindow,
		RateMax:       DefaultRateMax,
		TaskWorkers:   DefaultTaskWorkers,
		TaskRetention: DefaultTaskRetention,
		LoginRate:     DefaultLoginRate,
		LoginBurst:    DefaultLoginBurst,
		PostgresDSN:   strings.TrimSpace(os.Getenv("SENTRA_PG_DSN")),
	}

	var err error
	if cfg.AccessTTL, err = envDuration("SENTRA_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("SENTRA_REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateWindow, err = envDuration("SENTRA_RATE_WINDOW", cfg.RateWindow); err != nil {
		return Config{}, err
	}
	if cfg.TaskRetention, err = envDuration("SENTRA_TASK_RETENTION", cfg.TaskRetention); err != nil {
		return Config{}, err
	}
	if cfg.RateMax, err = envInt("SENTRA_RATE_MAX", cfg.RateMax); err != nil {
		return Config{}, err
	}
	if cfg.TaskWorkers, err = envInt("SENTRA_TASK_WORKERS", cfg.TaskWorkers); err != nil {
		return Config{}, err
	}
	if cfg.LoginBurst, err = envInt("SENTRA_LOGIN_BURST", cfg.LoginBurst); err != nil {
		return Config{}, err
	}
	if cfg.LoginRate, err = envFloat("SENTRA_LOGIN_RATE", cfg.LoginRate); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("config: SENTRA_AUTH_SECRET is required")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.RateWindow <= 0 || c.RateMax <= 0 {
		return errors.New("config: rate limit window and max must be positive")
	}
	if c.TaskWorkers <= 0 {
		return errors.New("config: task workers must be positive")
	}
	if c.TaskRetention < 0 {
		return errors.New("config: task retention must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare numbers are read as seconds for compatibility with
		// deployments that export plain integers.
		if secs, serr := strconv.Atoi(raw); serr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return f, nil
}
