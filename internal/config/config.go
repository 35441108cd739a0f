// Package config loads runtime settings from environment variables, with a
// .env file picked up in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	// StoreBackend selects where sessions persist: memory, redis, postgres.
	StoreBackend string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	SessionTTL   time.Duration
	PostgresDSN  string

	JWTSecret   string
	IdentityTTL time.Duration

	NATSURL string // empty disables the snapshot fanout

	CatalogBaseURL  string
	CatalogCacheTTL time.Duration

	// AudioDeviceID enables server-driven playback on a named output device,
	// authorized by AudioProviderToken.
	AudioDeviceID      string
	AudioProviderToken string

	AllowedOrigins []string
}

// Load reads the environment, after merging a .env file when present.
// Missing required values are returned as one combined error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getenv("APP_ENV", "dev"),
		Port:               getenv("APP_PORT", "8080"),
		StoreBackend:       getenv("STORE_BACKEND", "memory"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:          os.Getenv("REDIS_PASS"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		NATSURL:            os.Getenv("NATS_URL"),
		CatalogBaseURL:     os.Getenv("CATALOG_BASE_URL"),
		AudioDeviceID:      os.Getenv("AUDIO_DEVICE_ID"),
		AudioProviderToken: os.Getenv("AUDIO_PROVIDER_TOKEN"),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		IdentityTTL:        getDuration("IDENTITY_TTL", 12*time.Hour),
		CatalogCacheTTL:    getDuration("CATALOG_CACHE_TTL", 24*time.Hour),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, strings.TrimSpace(o))
		}
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "redis":
	case "postgres":
		if cfg.PostgresDSN == "" {
			missing = append(missing, "POSTGRES_DSN")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid int for %s: %q", key, s)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
