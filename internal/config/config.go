package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	StripeSecretKey    string
	PaymentCurrency    string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	OrderFeedBuffer    int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":5000"),
		DatabaseURL:        GetString("DATABASE_URL", ""),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "migrations"),
		AccessTokenSecret:  GetString("ACCESS_TOKEN_SECRET", ""),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_HOURS", 24)) * time.Hour,
		StripeSecretKey:    GetString("STRIPE_SECRET_KEY", ""),
		PaymentCurrency:    GetString("PAYMENT_CURRENCY", "usd"),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		OrderFeedBuffer:    GetInt("WS_ORDER_BUFFER", 100),
	}
}

// Validate rejects configurations missing required secrets. The process must
// refuse to start rather than run with an unset signing key or provider key.
func (c APIConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	return nil
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
