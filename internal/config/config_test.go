package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("UPSTREAM_API_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpstreamAPIURL != "https://api.hyperliquid.xyz" {
		t.Fatalf("UpstreamAPIURL = %q, want default", cfg.UpstreamAPIURL)
	}
	if cfg.MaxPerIPSessions != 3 {
		t.Fatalf("MaxPerIPSessions = %d, want 3", cfg.MaxPerIPSessions)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_API_URL", "https://example.test")
	t.Setenv("MAX_PER_IP_SESSIONS", "7")
	t.Setenv("REFRESH_INTERVAL_SECONDS", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpstreamAPIURL != "https://example.test" {
		t.Fatalf("UpstreamAPIURL = %q", cfg.UpstreamAPIURL)
	}
	if cfg.MaxPerIPSessions != 7 {
		t.Fatalf("MaxPerIPSessions = %d, want 7", cfg.MaxPerIPSessions)
	}
	if cfg.RefreshInterval.Seconds() != 120 {
		t.Fatalf("RefreshInterval = %s, want 120s", cfg.RefreshInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.MaxTotalSessions = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for zero MaxTotalSessions")
	}
}
