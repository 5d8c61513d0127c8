package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"zenchat/internal/auth"
	"zenchat/internal/chat"
	"zenchat/internal/config"
	"zenchat/internal/gateway"
	"zenchat/internal/observability/logging"
	"zenchat/internal/observability/metrics"
	"zenchat/internal/store"
	transport "zenchat/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "zenchat",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("zenchat")

	logger.Info("starting service")

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	if err := store.AutoMigrate(context.Background(), db); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	users := store.NewUserStore(db)
	messages := store.NewMessageStore(db)
	chatSvc := chat.NewService(messages, users)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher()

	hub := gateway.NewHub()
	gw := gateway.New(hub, chatSvc, tokens, cfg.WSSendBuffer)

	handler := transport.NewRouter(gw, chatSvc, users, tokens, hasher, transport.RouterConfig{
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPM: cfg.RateLimitRPM,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("zenchat listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openDB picks the driver from the URL scheme: postgres for deployments,
// sqlite for local development.
func openDB(url string) (*gorm.DB, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return gorm.Open(postgres.Open(url), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(strings.TrimPrefix(url, "sqlite://")), &gorm.Config{})
}
