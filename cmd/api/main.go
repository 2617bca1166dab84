package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/bazarcheh/auth-service/internal/auth"
	"github.com/bazarcheh/auth-service/internal/config"
	"github.com/bazarcheh/auth-service/internal/db"
	httpserver "github.com/bazarcheh/auth-service/internal/http"
	"github.com/bazarcheh/auth-service/internal/http/handlers"
	"github.com/bazarcheh/auth-service/internal/logger"
	"github.com/bazarcheh/auth-service/internal/middleware"
	"github.com/bazarcheh/auth-service/internal/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	store := repo.NewStore(database)
	tokens := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	svc := auth.NewService(store, tokens, auth.ServiceConfig{
		OtpTTL:               cfg.OtpTTL(),
		OpTimeout:            cfg.OpTimeout,
		RevocationFailClosed: cfg.RevocationFailClosed,
	}, log)

	rateLimit, err := middleware.NewRateLimit(middleware.RateLimitOptions{
		Requests:      cfg.RateLimitRequests,
		Period:        cfg.RateLimitPeriodDuration,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build rate limiter")
	}

	authHandler := handlers.NewAuthHandler(svc, cfg.RefreshTokenTTL, cfg.Production(), log)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Auth:      authHandler,
		AuthMW:    svc,
		RateLimit: rateLimit,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go runSweeper(sweepCtx, svc, cfg.SweepInterval, log)

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}

// runSweeper periodically deletes expired access-token tombstones. The
// expiry check on lookups makes this safe to run at any cadence.
func runSweeper(ctx context.Context, svc *auth.Service, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.SweepRevokedTokens(ctx)
			if err != nil {
				log.WithError(err).Error("revoked-token sweep failed")
				continue
			}
			if deleted > 0 {
				log.WithField("deleted", deleted).Info("swept expired revoked tokens")
			}
		}
	}
}

func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
