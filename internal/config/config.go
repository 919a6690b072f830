package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// App
	AppName string
	AppURL  string
	// AppKey encrypts two-factor secrets at rest. Must decode to 32 bytes.
	AppKey string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Token lifecycle
	TokenExpiry      time.Duration
	ResetTokenExpiry time.Duration

	// Social login
	GoogleClientID string

	// Usage accounting
	RateLimitWindow time.Duration

	// Server
	Port        string
	CORSOrigins string

	// Logging
	LogRetentionDays int
}

func Load() *Config {
	return &Config{
		AppName: getEnv("APP_NAME", "Timberline"),
		AppURL:  getEnv("APP_URL", "http://localhost:8080"),
		AppKey:  getEnv("APP_KEY", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "timberline"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		TokenExpiry:      parseDuration(getEnv("TOKEN_EXPIRY", "720h"), 720*time.Hour),
		ResetTokenExpiry: parseDuration(getEnv("RESET_TOKEN_EXPIRY", "1h"), time.Hour),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		RateLimitWindow: parseDuration(getEnv("RATE_LIMIT_WINDOW", "1h"), time.Hour),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

// Validate rejects a configuration that cannot run safely.
func (c *Config) Validate() error {
	if len(c.AppKey) != 32 {
		return errors.New("APP_KEY must be exactly 32 bytes")
	}
	if c.DBPassword == "" {
		return errors.New("DB_PASSWORD is required")
	}
	return nil
}

// EncryptionKey returns the raw key bytes for secret encryption.
func (c *Config) EncryptionKey() []byte {
	return []byte(c.AppKey)
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
