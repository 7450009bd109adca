package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/config"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"
	"github.com/abrasadev/ordering-auth-go/internal/stub"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.StubPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("require_verification", cfg.StubRequireVerification),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "abrasa-stub-gateway")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Stub backend ---
	backend := stub.NewServer(stub.Options{
		JWTSecret:           cfg.StubJWTSecret,
		RequireVerification: cfg.StubRequireVerification,
	}, metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.StubPort),
		Handler:      backend.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("stub gateway starting", zap.Int("port", cfg.StubPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("stub gateway shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("stub gateway stopped")
}
