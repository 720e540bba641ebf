package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Check-in reconciliation
	ConfirmMaxAttempts int
	ConfirmBackoff     time.Duration
	ScanLockTTL        time.Duration

	// Background refresh of open session caches
	RefreshSchedule string

	// Scan endpoint rate limiting
	ScanRateLimit  int
	ScanRateWindow time.Duration

	// Manual fallback station key (bcrypt hash)
	StationKeyHash string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Reconciliation
		ConfirmMaxAttempts: getEnvAsInt("CONFIRM_MAX_ATTEMPTS", 3),
		ConfirmBackoff:     getEnvAsDuration("CONFIRM_BACKOFF", "200ms"),
		ScanLockTTL:        getEnvAsDuration("SCAN_LOCK_TTL", "5s"),

		// Refresh
		RefreshSchedule: getEnv("SESSION_REFRESH_SCHEDULE", "@every 1m"),

		// Rate limiting
		ScanRateLimit:  getEnvAsInt("SCAN_RATE_LIMIT", 30),
		ScanRateWindow: getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Station key
		StationKeyHash: getEnv("STATION_KEY_HASH", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
