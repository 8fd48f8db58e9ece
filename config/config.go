package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Database configuration. An empty DBDriver keeps the embedded
	// PocketBase SQLite database.
	DBDriver    string
	DatabaseURL string

	// Settlement configuration
	TxTimeout      time.Duration
	LockTimeout    time.Duration
	MinTopUpAmount decimal.Decimal

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	EnableRateLimit    bool
	RateLimitPerMinute int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Monitoring
	EnableMetrics   bool
	MetricsPort     string
	MetricsInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Database
		DBDriver:    getEnv("DB_DRIVER", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// Settlement
		TxTimeout:      getEnvAsDuration("TX_TIMEOUT", "10s"),
		LockTimeout:    getEnvAsDuration("LOCK_TIMEOUT", "5s"),
		MinTopUpAmount: getEnvAsDecimal("MIN_TOPUP_AMOUNT", decimal.NewFromInt(10000)),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Rate limiting
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", false),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsInterval: getEnvAsDuration("METRICS_INTERVAL", "30s"),
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

// getEnvAsDuration only accepts positive durations; the values feed
// timeouts and tickers.
func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil && duration > 0 {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	return defaultValue
}
