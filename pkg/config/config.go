package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Webhook ingestion
	Webhook WebhookConfig

	// Async job dispatch
	Dispatch DispatchConfig

	// External APIs
	Tradier    TradierConfig
	TwelveData TwelveDataConfig

	// Account ownership (single-tenant for now)
	OwnerEmail string

	// Shared secret for scheduler-triggered job endpoints
	CronSecret string

	// Contracts per order (fixed sizing)
	OrderQty int

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// WebhookConfig holds inbound webhook authentication settings
type WebhookConfig struct {
	Secret        string // shared secret for token header and HMAC signature
	AllowUnsigned bool   // accept alerts without an HMAC signature
	RateLimit     int    // requests per IP per window
	RateWindow    time.Duration
}

// DispatchConfig holds async job dispatch settings.
// Mode "http" posts signed callbacks to BaseURL; "inline" processes in-process.
type DispatchConfig struct {
	Mode           string // "http" or "inline"
	BaseURL        string // public base URL for job callbacks
	Token          string
	SigningKey     string
	NextSigningKey string // for key rotation
}

// TradierConfig holds Tradier brokerage API configuration
type TradierConfig struct {
	BaseURL     string
	AccessToken string
	AccountID   string
}

// TwelveDataConfig holds Twelve Data market data API configuration
type TwelveDataConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Webhook ingestion
		Webhook: WebhookConfig{
			Secret:        getEnv("WEBHOOK_SECRET", ""),
			AllowUnsigned: getEnvAsBool("ALLOW_UNSIGNED_WEBHOOKS", false),
			RateLimit:     getEnvAsInt("WEBHOOK_RATE_LIMIT", 60),
			RateWindow:    getEnvAsDuration("WEBHOOK_RATE_WINDOW", "1m"),
		},

		// Async job dispatch
		Dispatch: DispatchConfig{
			Mode:           getEnv("DISPATCH_MODE", "inline"),
			BaseURL:        getEnv("APP_BASE_URL", ""),
			Token:          getEnv("DISPATCH_TOKEN", ""),
			SigningKey:     getEnv("DISPATCH_SIGNING_KEY", ""),
			NextSigningKey: getEnv("DISPATCH_NEXT_SIGNING_KEY", ""),
		},

		// External APIs
		Tradier: TradierConfig{
			BaseURL:     getEnv("TRADIER_BASE_URL", "https://api.tradier.com"),
			AccessToken: getEnv("TRADIER_ACCESS_TOKEN", ""),
			AccountID:   getEnv("TRADIER_ACCOUNT_ID", ""),
		},

		TwelveData: TwelveDataConfig{
			BaseURL: getEnv("TWELVEDATA_BASE_URL", "https://api.twelvedata.com"),
			APIKey:  getEnv("TWELVEDATA_API_KEY", ""),
		},

		// Account ownership
		OwnerEmail: getEnv("OWNER_USER_EMAIL", ""),

		// Cron
		CronSecret: getEnv("CRON_SECRET", ""),

		// Sizing
		OrderQty: getEnvAsInt("ORDER_QTY", 1),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Dispatch.Mode != "http" && c.Dispatch.Mode != "inline" {
		return fmt.Errorf("DISPATCH_MODE must be one of: http, inline")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
