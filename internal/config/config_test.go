package config

import (
	"testing"
	"time"

	"github.com/songify/reporter/internal/scrub"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCRUB_FIELDS", "")
	t.Setenv("PORT", "")
	t.Setenv("VIEWER_TOKEN_DURATION", "")
	t.Setenv("METRICS_ENABLED", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if len(cfg.ScrubFields) != len(DefaultScrubFields) {
		t.Errorf("ScrubFields = %v, want %v", cfg.ScrubFields, DefaultScrubFields)
	}
	if cfg.ScrubMaxDepth != scrub.DefaultMaxDepth {
		t.Errorf("ScrubMaxDepth = %d, want %d", cfg.ScrubMaxDepth, scrub.DefaultMaxDepth)
	}
	if cfg.AdminTokenDuration != 12*time.Hour {
		t.Errorf("AdminTokenDuration = %v, want 12h", cfg.AdminTokenDuration)
	}
	if cfg.ViewerTokenDuration != 7*24*time.Hour {
		t.Errorf("ViewerTokenDuration = %v, want 168h", cfg.ViewerTokenDuration)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SCRUB_FIELDS", "ssn, card_number ,:scrub_all")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("ADMIN_TOKEN_DURATION", "30m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,,192.168.1.1")
	t.Setenv("METRICS_ENABLED", "false")

	cfg := Load()

	if got := cfg.ScrubFields; len(got) != 3 || got[1] != "card_number" {
		t.Errorf("ScrubFields = %v", got)
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Errorf("RateLimitPerMinute = %d, want 5", cfg.RateLimitPerMinute)
	}
	if cfg.AdminTokenDuration != 30*time.Minute {
		t.Errorf("AdminTokenDuration = %v, want 30m", cfg.AdminTokenDuration)
	}
	if len(cfg.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v, want 2 entries", cfg.TrustedProxies)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled = true, want false from env")
	}

	opts := cfg.NewScrubber().Options()
	if !opts.RedactAll {
		t.Error("expected :scrub_all to enable RedactAll")
	}
	if !scrub.Matches(opts.FieldsPattern, "customer_SSN") {
		t.Error("expected ssn to match")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	t.Setenv("ADMIN_TOKEN_DURATION", "forever")

	cfg := Load()

	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
	if cfg.AdminTokenDuration != 12*time.Hour {
		t.Errorf("AdminTokenDuration = %v, want 12h", cfg.AdminTokenDuration)
	}
}
