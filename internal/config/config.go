package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port        string
	TokenSecret string
	TokenTTL    time.Duration
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

// Load reads configuration from the environment. If path is non-empty, the
// .env file at that location is loaded first; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}

	cfg.App.Port = getEnvOrDefault("APP_PORT", "8080")
	cfg.App.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.App.TokenSecret == "" {
		return nil, fmt.Errorf("config: TOKEN_SECRET is required")
	}

	ttl, err := parseDurationOrDefault("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.App.TokenTTL = ttl

	for _, v := range []struct {
		key  string
		dst  *string
		want bool
	}{
		{"DB_HOST", &cfg.Postgres.Host, true},
		{"DB_PORT", &cfg.Postgres.Port, true},
		{"DB_USER", &cfg.Postgres.User, true},
		{"DB_PASSWORD", &cfg.Postgres.Password, true},
		{"DB_NAME", &cfg.Postgres.DBName, true},
	} {
		*v.dst = os.Getenv(v.key)
		if v.want && *v.dst == "" {
			return nil, fmt.Errorf("config: %s is required", v.key)
		}
	}

	cfg.Postgres.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnvOrDefault("DB_MIGRATIONS_PATH", "migrations")

	maxConns, err := parseInt32OrDefault("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConns = maxConns

	minConns, err := parseInt32OrDefault("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MinConns = minConns

	lifetime, err := parseDurationOrDefault("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Postgres.MaxConnLifetime = lifetime

	// Redis is optional: without an address the notification relay is disabled.
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt32OrDefault(key string, fallback int32) (int32, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return int32(v), nil
}

func parseDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return v, nil
}
