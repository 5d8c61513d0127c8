package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	Environment string
	LogLevel    string

	DatabaseURL string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	CORSOrigins  []string
	RateLimitRPM int

	WSSendBuffer int
}

func Load() Config {
	// A local .env is optional; real deployments set environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Addr:         envOr("ZENCHAT_ADDR", ":8080"),
		Environment:  envOr("ENVIRONMENT", "dev"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		DatabaseURL:  envOr("DATABASE_URL", "sqlite://zenchat.db"),
		JWTSecret:    envOr("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:    envOr("JWT_ISSUER", "zenchat"),
		TokenTTL:     time.Duration(envInt("TOKEN_TTL_HOURS", 168)) * time.Hour,
		CORSOrigins:  splitOrigins(os.Getenv("CORS_ORIGINS")),
		RateLimitRPM: envInt("RATE_LIMIT_RPM", 300),
		WSSendBuffer: envInt("WS_SEND_BUFFER", 64),
	}

	if cfg.JWTSecret == "dev-secret-change-me" && cfg.Environment != "dev" {
		slog.Warn("config: running outside dev with the default JWT secret")
	}
	if cfg.WSSendBuffer <= 0 {
		slog.Warn("config: invalid ws send buffer, defaulting", "buffer", cfg.WSSendBuffer)
		cfg.WSSendBuffer = 64
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		slog.Warn("config: invalid int, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func splitOrigins(raw string) []string {
	out := []string{}
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	// The CORS layer treats an empty list as "allow any origin" for local dev.
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
