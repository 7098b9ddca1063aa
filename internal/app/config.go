package app

import (
	"os"
	"strconv"
	"time"

	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/pkg/cryptox"
	"github.com/mooncress/authcore/pkg/jwtx"
)

type Config struct {
	Issuer      string // Issuer claim for signed tokens (default: authcore)
	SigningKey  string // Path to the Ed25519 signing key PEM, generated if absent (default: ./authcore.key)
	DatabaseURL string // Path to the SQLite database file (default: ./authcore.db)

	RedisAddr     string // Address of the Redis instance backing ephemeral state (default: localhost:6379)
	RedisPassword string // Optional Redis password
	RedisDB       int    // Redis logical database (default: 0)

	KafkaBrokers string // Comma-separated Kafka brokers; empty disables event emission
	KafkaTopic   string // Topic identity events are published to (default: authcore.events)

	AccessTTL    time.Duration // Access token lifetime (default: 15m)
	RefreshTTL   time.Duration // Refresh token lifetime (default: 168h)
	ChallengeTTL time.Duration // Second-factor challenge lifetime (default: 5m)
	EnrollTTL    time.Duration // Pending enrollment lifetime (default: 10m)
	ResetTTL     time.Duration // Password reset token lifetime (default: 1h)

	LockoutThreshold int           // Failed attempts before lockout (default: 5)
	LockoutDuration  time.Duration // Lockout length (default: 30m)
	BcryptCost       int           // Password hash cost factor (default: 12)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:      getEnvOrDefault("AUTH_ISSUER", "authcore"),
		SigningKey:  getEnvOrDefault("AUTH_SIGNING_KEY_FILE", "authcore.key"),
		DatabaseURL: getEnvOrDefault("AUTH_DATABASE_FILE", "authcore.db"),

		RedisAddr:     getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),

		KafkaBrokers: os.Getenv("AUTH_KAFKA_BROKERS"),
		KafkaTopic:   getEnvOrDefault("AUTH_KAFKA_TOPIC", "authcore.events"),

		AccessTTL:    getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTTL),
		RefreshTTL:   getEnvDurationOrDefault("AUTH_REFRESH_TTL", service.DefaultRefreshTTL),
		ChallengeTTL: getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", jwtx.DefaultChallengeTTL),
		EnrollTTL:    getEnvDurationOrDefault("AUTH_ENROLL_TTL", service.DefaultEnrollmentTTL),
		ResetTTL:     getEnvDurationOrDefault("AUTH_RESET_TTL", service.DefaultResetTTL),

		LockoutThreshold: getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", service.DefaultLockoutThreshold),
		LockoutDuration:  getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", service.DefaultLockoutDuration),
		BcryptCost:       getEnvIntOrDefault("AUTH_BCRYPT_COST", cryptox.DefaultCost),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
