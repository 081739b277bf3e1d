package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	DatabaseURL   string
	JWTSecret     string
	EncryptionKey string
	AdminCode     string
	Port          string
	Environment   string
	LogLevel      string
	CORSOrigin    string
	OTPTTL        time.Duration
	RateLimit     RateLimitConfig
	TaxAPI        TaxAPIConfig
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// TaxAPIConfig points at the external tax-authority verification API. An empty
// URL means identifiers are only format checked.
type TaxAPIConfig struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

const defaultAdminCode = "TRADESHIELD_ADMIN_2025"

func Load() *Config {
	return &Config{
		DatabaseURL:   getEnv("DATABASE_URL", "tradeshield.db"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", "TradeShield2025TaxIdentityKey!!!"),
		AdminCode:     getEnv("ADMIN_CODE", defaultAdminCode),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", ""),
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:3000"),
		OTPTTL:        getEnvDuration("OTP_TTL", 10*time.Minute),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 50),
		},
		TaxAPI: TaxAPIConfig{
			URL:               getEnv("TAX_API_URL", ""),
			APIKey:            getEnv("TAX_API_KEY", ""),
			Timeout:           getEnvDuration("TAX_API_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvFloat("TAX_API_RPS", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// ValidateConfig returns an error for settings the service cannot run with and
// logs warnings for insecure ones.
func ValidateConfig(cfg *Config, log *zap.Logger) error {
	if len(cfg.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 characters, got %d", len(cfg.EncryptionKey))
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive, got %.2f rps burst %d", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	if cfg.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if cfg.TaxAPI.URL != "" && cfg.TaxAPI.Timeout <= 0 {
		return fmt.Errorf("TAX_API_TIMEOUT must be positive")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Warn("JWT_SECRET should be at least 32 characters for security")
	}
	if cfg.Environment == "production" && cfg.AdminCode == defaultAdminCode {
		log.Warn("change ADMIN_CODE in production environment")
	}
	if cfg.TaxAPI.URL == "" {
		log.Info("TAX_API_URL not set, tax identifiers will only be format checked")
	}
	return nil
}
