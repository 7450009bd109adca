package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	LogLevel string

	// Auth gateway (remote backend)
	GatewayURL   string
	Audience     string // portal discriminator sent on login
	FrontendType string // portal discriminator sent on register

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience (transport collaborator)
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Session store
	SessionPath       string
	SessionPassphrase string // empty = plaintext session file

	// Observability
	OTLPEndpoint string

	// Stub gateway (cmd/stubgateway only)
	StubPort                int
	StubJWTSecret           string
	StubRequireVerification bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GatewayURL:   getEnv("AUTH_GATEWAY_URL", "http://localhost:8081"),
		Audience:     getEnv("AUTH_AUDIENCE", "client"),
		FrontendType: getEnv("AUTH_FRONTEND_TYPE", "client"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),

		SessionPath:       getEnv("SESSION_PATH", defaultSessionPath()),
		SessionPassphrase: getEnv("SESSION_PASSPHRASE", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		StubPort:                getEnvInt("STUB_PORT", 8081),
		StubJWTSecret:           getEnv("STUB_JWT_SECRET", "stub-dev-secret-change-me"),
		StubRequireVerification: getEnv("STUB_REQUIRE_VERIFICATION", "false") == "true",
	}
}

// defaultSessionPath places the session file under the user config dir,
// falling back to the working directory when none is resolvable.
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(dir, "abrasa", "session.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
