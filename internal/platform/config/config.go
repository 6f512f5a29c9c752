package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr     string
	LogLevel slog.Level

	DatabaseURL string
	RedisURL    string

	DocumentServiceURL string
	ScheduleServiceURL string

	RoutingBaseURL string
	RoutingProfile string
	RoutingAPIKey  string

	JWTSigningKey   string
	ServiceTokenTTL time.Duration

	CatalogCacheTTL time.Duration
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}

// FromEnv builds a Config from environment variables. A .env file is loaded
// first when present so local runs match deployed configuration handling.
func FromEnv() Config {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if get("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}

	return Config{
		Addr:     get("ZONASI_ADDR", ":8080"),
		LogLevel: level,

		DatabaseURL: get("DATABASE_URL", ""),
		RedisURL:    get("REDIS_URL", ""),

		DocumentServiceURL: get("DOCUMENT_SERVICE_URL", "http://localhost:8081"),
		ScheduleServiceURL: get("PERIODE_SERVICE_URL", "http://localhost:8082"),

		RoutingBaseURL: get("ROUTING_BASE_URL", "https://api.mapbox.com"),
		RoutingProfile: get("ROUTING_PROFILE", "cycling"),
		RoutingAPIKey:  get("MAPBOX_API_KEY", ""),

		// Dev default only; deployments must override.
		JWTSigningKey:   get("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ServiceTokenTTL: getDuration("SERVICE_TOKEN_TTL_SECONDS", 5*time.Minute),

		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL_SECONDS", 5*time.Minute),
	}
}
