// Package config provides configuration management for the portfolio service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	OKX      OKXConfig
	Breaker  BreakerConfig
	Backoff  BackoffConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration. An empty Host disables
// valuation history recording.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration. An empty Host disables the price
// series cache.
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	PriceTTL       time.Duration
}

// OKXConfig holds upstream API credentials and client tuning
type OKXConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	ProjectID  string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second toward the upstream
}

// BreakerConfig holds circuit breaker tuning
type BreakerConfig struct {
	FailThreshold int
	ResetTimeout  time.Duration
}

// BackoffConfig holds retry backoff tuning
type BackoffConfig struct {
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64
}

// SyncConfig holds the background synchronization loop configuration
type SyncConfig struct {
	Interval time.Duration
	Workers  int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "okx_folio"),
				User:           getEnv("POSTGRES_USER", "folio"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "okx_folio"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", ""),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				PriceTTL:       getEnvAsDuration("REDIS_PRICE_TTL", 5*time.Minute),
			},
		},
		OKX: OKXConfig{
			BaseURL:    getEnv("OKX_BASE_URL", "https://www.okx.com"),
			APIKey:     getEnv("OKX_API_KEY", ""),
			APISecret:  getEnv("OKX_API_SECRET", ""),
			Passphrase: getEnv("OKX_API_PASSPHRASE", ""),
			ProjectID:  getEnv("OKX_PROJECT_ID", ""),
			Timeout:    getEnvAsDuration("OKX_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("OKX_MAX_RETRIES", 3),
			RateLimit:  getEnvAsFloat("OKX_RATE_LIMIT", 5.0),
		},
		Breaker: BreakerConfig{
			FailThreshold: getEnvAsInt("CIRCUIT_FAIL_THRESHOLD", 5),
			ResetTimeout:  getEnvAsDuration("CIRCUIT_RESET_TIMEOUT", 30*time.Second),
		},
		Backoff: BackoffConfig{
			BaseDelay:      getEnvAsDuration("BACKOFF_BASE_DELAY", 200*time.Millisecond),
			Multiplier:     getEnvAsFloat("BACKOFF_MULTIPLIER", 2.0),
			MaxDelay:       getEnvAsDuration("BACKOFF_MAX_DELAY", 5*time.Second),
			JitterFraction: getEnvAsFloat("BACKOFF_JITTER_FRACTION", 0.1),
		},
		Sync: SyncConfig{
			Interval: getEnvAsDuration("SYNC_INTERVAL", 15*time.Minute),
			Workers:  getEnvAsInt("SYNC_WORKERS", 4),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
