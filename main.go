package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tradeshield/config"
	"tradeshield/database"
	"tradeshield/handlers"
	"tradeshield/logger"
	"tradeshield/middleware"
	"tradeshield/routes"
	"tradeshield/utils"
	"tradeshield/verifier"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	if envErr != nil {
		zl.Info("no .env file found, using environment")
	}

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	if err := config.ValidateConfig(cfg, zl); err != nil {
		return err
	}
	if err := utils.InitializeEncryption(cfg.EncryptionKey); err != nil {
		return fmt.Errorf("initialize encryption: %w", err)
	}
	if err := utils.InitializeJWT(cfg.JWTSecret); err != nil {
		return fmt.Errorf("initialize JWT: %w", err)
	}

	db, err := database.Initialize(cfg.DatabaseURL, zl)
	if err != nil {
		return err
	}

	h := handlers.NewHandlers(db, cfg, verifier.New(cfg.TaxAPI, zl), zl)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	done := make(chan struct{})
	defer close(done)
	go limiter.Run(done)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: routes.SetupRouter(h, zl, routes.Options{
			CORSOrigin:  cfg.CORSOrigin,
			RateLimiter: limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.Bool("remote_tax_api", cfg.TaxAPI.URL != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
