// Package config loads daemon settings from the environment, with an optional
// .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ListenAddr  string

	DatabaseURL string
	RedisAddr   string

	// FidoHelperURL points at the external security key helper. Empty
	// disables the security key provisioning method; when set, RedisAddr
	// must be set too.
	FidoHelperURL string

	LogLevel  string
	LogFormat string

	PasswordIterations int
	PasswordMinLength  int

	ResetTTL         time.Duration
	TokenTTL         time.Duration
	ChallengeTTL     time.Duration
	CacheTTL         time.Duration
	CacheMaxSize     int
	NotifyBufferSize int

	ShutdownTimeout time.Duration
}

// Load reads the environment. A missing .env file is not an error; a present
// but malformed one is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ACCOUNTS_ENV", "development"),
		ListenAddr:  getEnv("ACCOUNTS_LISTEN_ADDR", ":8090"),
		DatabaseURL: getEnv("ACCOUNTS_DATABASE_URL", ""),
		RedisAddr:   getEnv("ACCOUNTS_REDIS_ADDR", ""),

		FidoHelperURL: getEnv("ACCOUNTS_FIDO_HELPER_URL", ""),
		LogLevel:      getEnv("ACCOUNTS_LOG_LEVEL", "info"),
		LogFormat:     getEnv("ACCOUNTS_LOG_FORMAT", "console"),
	}

	var err error
	if cfg.PasswordIterations, err = getEnvInt("ACCOUNTS_PASSWORD_ITERATIONS", 100_000); err != nil {
		return nil, err
	}
	if cfg.PasswordMinLength, err = getEnvInt("ACCOUNTS_PASSWORD_MIN_LENGTH", 8); err != nil {
		return nil, err
	}
	if cfg.ResetTTL, err = getEnvDuration("ACCOUNTS_RESET_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getEnvDuration("ACCOUNTS_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ChallengeTTL, err = getEnvDuration("ACCOUNTS_CHALLENGE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("ACCOUNTS_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheMaxSize, err = getEnvInt("ACCOUNTS_CACHE_MAX_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.NotifyBufferSize, err = getEnvInt("ACCOUNTS_NOTIFY_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("ACCOUNTS_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: ACCOUNTS_DATABASE_URL is required")
	}
	if cfg.FidoHelperURL != "" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("config: ACCOUNTS_FIDO_HELPER_URL requires ACCOUNTS_REDIS_ADDR")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
