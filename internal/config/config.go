package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Telegram (optional front end)
	BotToken string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Security
	JWTSecret string

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string
	Timezone string

	// Rate Limiting
	RateLimitPerAccount int
	RateLimitPerIP      int
	RateLimitWindow     time.Duration

	// Economy
	WelcomePoints        int64
	SigninBasePoints     int64
	SigninMilestoneDays  int
	SigninMilestoneBonus int64
	MarketDefaultFeeRate decimal.Decimal
	MarketDefaultMinBet  int64

	// Jobs
	MarketSweepCron string
	LedgerAuditCron string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "rewards"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "rewards_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),

		RateLimitPerAccount: getEnvInt("RATE_LIMIT_PER_ACCOUNT", 30),
		RateLimitPerIP:      getEnvInt("RATE_LIMIT_PER_IP", 120),
		RateLimitWindow:     time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		WelcomePoints:        getEnvInt64("WELCOME_POINTS", 100),
		SigninBasePoints:     getEnvInt64("SIGNIN_BASE_POINTS", 10),
		SigninMilestoneDays:  getEnvInt("SIGNIN_MILESTONE_DAYS", 7),
		SigninMilestoneBonus: getEnvInt64("SIGNIN_MILESTONE_BONUS", 50),
		MarketDefaultMinBet:  getEnvInt64("MARKET_DEFAULT_MIN_BET", 10),

		MarketSweepCron: getEnv("MARKET_SWEEP_CRON", "* * * * *"),
		LedgerAuditCron: getEnv("LEDGER_AUDIT_CRON", "30 3 * * *"),
	}

	feeRate, err := decimal.NewFromString(getEnv("MARKET_DEFAULT_FEE_RATE", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKET_DEFAULT_FEE_RATE: %w", err)
	}
	cfg.MarketDefaultFeeRate = feeRate

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.MarketDefaultFeeRate.IsNegative() || c.MarketDefaultFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("MARKET_DEFAULT_FEE_RATE must be in [0, 1)")
	}
	if c.RateLimitPerAccount <= 0 || c.RateLimitPerIP <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_ACCOUNT and RATE_LIMIT_PER_IP must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Location is the zone in which daily and weekly periods roll over.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
