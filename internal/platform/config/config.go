package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration. Built from environment
// variables so main stays lean.
type Server struct {
	Addr          string
	PostgresDSN   string
	JWTSigningKey string
	TokenTTL      time.Duration

	Redis    RedisConfig
	Geocoder GeocoderConfig
	Audit    AuditConfig
}

// RedisConfig configures the optional redis cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GeocoderConfig configures the forward-geocoding collaborator.
// An empty APIKey disables live lookups; profile edits then fall back to the
// "Unknown" location.
type GeocoderConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// AuditConfig configures the audit event sink. Empty Brokers keeps audit
// events on the structured log only.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("BLOODLINK_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("BLOODLINK_POSTGRES_DSN"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      envDuration("BLOODLINK_TOKEN_TTL", time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("BLOODLINK_REDIS_URL"),
			PoolSize:     envInt("BLOODLINK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("BLOODLINK_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("BLOODLINK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("BLOODLINK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("BLOODLINK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Geocoder: GeocoderConfig{
			BaseURL:  envOr("GEOCODER_BASE_URL", "https://geocode.search.hereapi.com/v1/geocode"),
			APIKey:   os.Getenv("GEOCODER_API_KEY"),
			Timeout:  envDuration("GEOCODER_TIMEOUT", 3*time.Second),
			CacheTTL: envDuration("GEOCODER_CACHE_TTL", 24*time.Hour),
		},
		Audit: AuditConfig{
			Brokers: splitList(os.Getenv("BLOODLINK_KAFKA_BROKERS")),
			Topic:   envOr("BLOODLINK_AUDIT_TOPIC", "bloodlink.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
