package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingJWTSecret is returned when AUTHSIM_JWT_SECRET is unset or too
// short to sign tokens safely.
var ErrMissingJWTSecret = errors.New("AUTHSIM_JWT_SECRET must be set to at least 32 bytes")

type Config struct {
	Issuer    string // Issuer claim for tokens (default: authsim)
	JWTSecret string // Required: HS256 signing secret, at least 32 bytes

	AccessTokenTTL  time.Duration // Access token lifetime (default: 24h)
	RefreshTokenTTL time.Duration // Refresh token and session lifetime (default: 168h)
	RotateRefresh   bool          // Rotate the refresh token on every refresh (default: false)

	LockoutEnabled     bool          // Whether failed logins lock accounts (default: true)
	LockoutMaxAttempts int           // Failures before locking (default: 5)
	LockoutDuration    time.Duration // How long a lock lasts (default: 15m)

	StoreDriver  string // Storage backend: memory or sqlite (default: memory)
	DatabaseFile string // SQLite database file (default: ./authsim.db)

	SeedEmail    string // Optional: user created when the store is empty
	SeedPassword string // Required when SeedEmail is set

	SweepInterval time.Duration // Expiry sweep interval (default: 5m)
	AuditBuffer   int           // Audit event queue depth (default: 256)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:    getEnvOrDefault("AUTHSIM_ISSUER", "authsim"),
		JWTSecret: os.Getenv("AUTHSIM_JWT_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTHSIM_ACCESS_TTL", 24*time.Hour),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTHSIM_REFRESH_TTL", 7*24*time.Hour),
		RotateRefresh:   getEnvBoolOrDefault("AUTHSIM_ROTATE_REFRESH", false),

		LockoutEnabled:     getEnvBoolOrDefault("AUTHSIM_LOCKOUT_ENABLED", true),
		LockoutMaxAttempts: getEnvIntOrDefault("AUTHSIM_LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDuration:    getEnvDurationOrDefault("AUTHSIM_LOCKOUT_DURATION", 15*time.Minute),

		StoreDriver:  getEnvOrDefault("AUTHSIM_STORE_DRIVER", "memory"),
		DatabaseFile: getEnvOrDefault("AUTHSIM_DATABASE_FILE", "authsim.db"),

		SeedEmail:    os.Getenv("AUTHSIM_SEED_EMAIL"),
		SeedPassword: os.Getenv("AUTHSIM_SEED_PASSWORD"),

		SweepInterval: getEnvDurationOrDefault("AUTHSIM_SWEEP_INTERVAL", 5*time.Minute),
		AuditBuffer:   getEnvIntOrDefault("AUTHSIM_AUDIT_BUFFER", 256),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
