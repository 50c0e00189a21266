// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/songify/reporter/internal/scrub"
)

// DefaultScrubFields are redacted from report params when SCRUB_FIELDS is unset.
var DefaultScrubFields = []string{
	"password",
	"passwordHash",
	"secret",
	"token",
	"jwt",
	"authorization",
	"cookie",
	"api_key",
}

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                string
	DatabasePath        string
	JWTSecret           string
	AdminPortalPassword string
	AdminTokenDuration  time.Duration
	ViewerTokenDuration time.Duration
	RateLimitPerMinute  int
	CORSAllowedOrigins  []string
	TrustedProxies      []string
	SentryDSN           string
	SentryDSNFrontend   string
	SentryEnvironment   string
	ScrubFields         []string
	ScrubMaxDepth       int
	MaxReportBytes      int64
	ReportListLimit     int
	MetricsEnabled      bool
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "./reporter.db"),
		JWTSecret:           getEnv("JWT_SECRET", "change-me-in-production"), // #nosec G101 -- intentional dev default
		AdminPortalPassword: getEnv("ADMIN_PORTAL_PASSWORD", "admin123"),     // #nosec G101 -- intentional dev default
		AdminTokenDuration:  getDurationEnv("ADMIN_TOKEN_DURATION", 12*time.Hour),
		ViewerTokenDuration: getDurationEnv("VIEWER_TOKEN_DURATION", 7*24*time.Hour),
		RateLimitPerMinute:  getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:  getStringSliceEnvDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		TrustedProxies:      getStringSliceEnv("TRUSTED_PROXIES"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		SentryDSNFrontend:   getEnv("SENTRY_DSN_FRONTEND", ""),
		SentryEnvironment:   getEnv("SENTRY_ENVIRONMENT", "production"),
		ScrubFields:         getStringSliceEnvDefault("SCRUB_FIELDS", DefaultScrubFields),
		ScrubMaxDepth:       getIntEnv("SCRUB_MAX_DEPTH", scrub.DefaultMaxDepth),
		MaxReportBytes:      int64(getIntEnv("MAX_REPORT_BYTES", 1<<20)),
		ReportListLimit:     getIntEnv("REPORT_LIST_LIMIT", 100),
		MetricsEnabled:      getBoolEnv("METRICS_ENABLED", true),
	}
}

// SensitiveFields returns the scrub config entries for ScrubFields.
func (c *Config) SensitiveFields() []any {
	return scrub.ParseFields(c.ScrubFields)
}

// NewScrubber builds the params scrubber from the configured fields.
func (c *Config) NewScrubber(opts ...scrub.Option) *scrub.Scrubber {
	opts = append([]scrub.Option{scrub.WithMaxDepth(c.ScrubMaxDepth)}, opts...)
	return scrub.New(c.SensitiveFields(), opts...)
}

func getStringSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getStringSliceEnvDefault(key string, defaultValue []string) []string {
	if result := getStringSliceEnv(key); result != nil {
		return result
	}
	return append([]string(nil), defaultValue...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
