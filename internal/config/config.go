package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Soluxe backend
type Config struct {
	Env  string
	Port string

	// Redis configuration
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Session tokens
	JWTSecret string
	JWTExpiry time.Duration

	// Solana RPC
	SolanaRPCURL string

	// Round timing
	BettingWindow time.Duration
	ResolveWindow time.Duration
	SettleDelay   time.Duration
	HistoryLimit  int64

	// Affiliate commission rate applied to completed deposits
	AffiliateRate float64

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("API_ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		SolanaRPCURL: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	expiryHours, err := parseIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}
	cfg.JWTExpiry = time.Duration(expiryHours) * time.Hour

	bettingSeconds, err := parseIntEnv("BETTING_WINDOW_SECONDS", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid BETTING_WINDOW_SECONDS: %w", err)
	}
	cfg.BettingWindow = time.Duration(bettingSeconds) * time.Second

	resolveSeconds, err := parseIntEnv("RESOLVE_WINDOW_SECONDS", 9)
	if err != nil {
		return nil, fmt.Errorf("invalid RESOLVE_WINDOW_SECONDS: %w", err)
	}
	cfg.ResolveWindow = time.Duration(resolveSeconds) * time.Second

	settleSeconds, err := parseIntEnv("SETTLE_DELAY_SECONDS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLE_DELAY_SECONDS: %w", err)
	}
	cfg.SettleDelay = time.Duration(settleSeconds) * time.Second

	historyLimit, err := parseIntEnv("HISTORY_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
	}
	cfg.HistoryLimit = int64(historyLimit)

	cfg.AffiliateRate, err = parseFloatEnv("AFFILIATE_RATE", 0.05)
	if err != nil {
		return nil, fmt.Errorf("invalid AFFILIATE_RATE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid
func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.BettingWindow <= 0 || c.ResolveWindow <= 0 || c.SettleDelay <= 0 {
		return fmt.Errorf("round timing windows must be positive")
	}

	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be at least 1")
	}

	if c.AffiliateRate < 0 || c.AffiliateRate >= 1 {
		return fmt.Errorf("AFFILIATE_RATE must be in [0, 1)")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

// parseFloatEnv parses a float environment variable with a default value
func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(str, 64)
}
