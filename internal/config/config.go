package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingRemote is returned when the remote endpoint or public key is unset.
var ErrMissingRemote = errors.New("SUPABASE_URL and SUPABASE_ANON_KEY must be set")

type Config struct {
	// Remote data service
	SupabaseURL     string
	SupabaseAnonKey string
	JWTSecret       string // optional; enables local signature checks on access tokens
	StorageBucket   string
	RequestTimeout  time.Duration

	// HTTP server
	Port       string
	CORSOrigin string
	LogLevel   slog.Level

	// Catalog cache (disabled when RedisAddr is empty)
	RedisAddr       string
	CatalogCacheTTL time.Duration

	ContactRatePerMinute int

	// Privileged Postgres DSN, used only by the migration command
	DatabaseURL string
}

// LoadConfig reads the process environment. The caller is expected to have
// loaded any .env file first.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SupabaseURL:     strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		JWTSecret:       os.Getenv("SUPABASE_JWT_SECRET"),
		StorageBucket:   getEnv("STORAGE_BUCKET", "product-images"),
		Port:            getEnv("PORT", "8080"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "http://localhost:5173"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		return nil, ErrMissingRemote
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = "8080"
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ContactRatePerMinute, err = getInt("CONTACT_RATE_PER_MINUTE", 5); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = getLevel("LOG_LEVEL", slog.LevelInfo); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		slog.Warn("SUPABASE_JWT_SECRET not set. Access tokens will be checked only against the auth service.")
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

func getLevel(key string, def slog.Level) (slog.Level, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return lvl, nil
}
