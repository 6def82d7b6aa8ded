// config.go — environment-driven configuration: defaults layered with
// environment overrides, then validated. No file cascade — this is a
// server process, not a developer tool with project-local config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all resolved configuration values for the service.
type Config struct {
	UpstreamAPIURL string
	UpstreamAPIKey string

	CacheURL string // "memory://" or "redis://host:port/db"

	RefreshInterval   time.Duration
	InitialRefreshGap time.Duration

	MaxTotalSessions int
	MaxPerIPSessions int
	HeartbeatInterval time.Duration

	HTTPAddr string

	RateLimitPerMinute int // request-weight budget per minute
	RequestWeight      int // weight charged per upstream request
}

// Defaults returns the base configuration before environment overrides.
func Defaults() Config {
	return Config{
		UpstreamAPIURL:     "https://api.hyperliquid.xyz",
		CacheURL:           "memory://",
		RefreshInterval:    60 * time.Second,
		InitialRefreshGap:  5 * time.Second,
		MaxTotalSessions:   1000,
		MaxPerIPSessions:   3,
		HeartbeatInterval:  30 * time.Second,
		HTTPAddr:           ":8080",
		RateLimitPerMinute: 600,
		RequestWeight:      1,
	}
}

// Load builds the final configuration from environment variables layered
// on top of Defaults, then validates it.
func Load() (Config, error) {
	cfg := Defaults()

	if v := os.Getenv("UPSTREAM_API_URL"); v != "" {
		cfg.UpstreamAPIURL = v
	}
	cfg.UpstreamAPIKey = os.Getenv("UPSTREAM_API_KEY")

	if v := os.Getenv("CACHE_URL"); v != "" {
		cfg.CacheURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	if err := durationEnv("REFRESH_INTERVAL_SECONDS", &cfg.RefreshInterval); err != nil {
		return cfg, err
	}
	if err := durationEnv("HEARTBEAT_INTERVAL_SECONDS", &cfg.HeartbeatInterval); err != nil {
		return cfg, err
	}
	if err := intEnv("MAX_TOTAL_SESSIONS", &cfg.MaxTotalSessions); err != nil {
		return cfg, err
	}
	if err := intEnv("MAX_PER_IP_SESSIONS", &cfg.MaxPerIPSessions); err != nil {
		return cfg, err
	}
	if err := intEnv("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute); err != nil {
		return cfg, err
	}
	if err := intEnv("REQUEST_WEIGHT", &cfg.RequestWeight); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func durationEnv(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}

func intEnv(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

// Validate checks that configuration values are within acceptable ranges.
func (c Config) Validate() error {
	if c.UpstreamAPIURL == "" {
		return fmt.Errorf("UPSTREAM_API_URL must not be empty")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.MaxTotalSessions <= 0 {
		return fmt.Errorf("max total sessions must be positive, got %d", c.MaxTotalSessions)
	}
	if c.MaxPerIPSessions <= 0 {
		return fmt.Errorf("max per-ip sessions must be positive, got %d", c.MaxPerIPSessions)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit per minute must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.RequestWeight <= 0 {
		return fmt.Errorf("request weight must be positive, got %d", c.RequestWeight)
	}
	return nil
}
