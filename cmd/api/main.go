// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/bootstrap"
	"github.com/capitalize-ai/sentiment-support-agent/internal/config"
	"github.com/capitalize-ai/sentiment-support-agent/internal/handler"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server", zap.String("provider", cfg.LLMProvider), zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "sentiment-support-agent", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	rt, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to wire runtime", zap.Error(err))
	}
	defer rt.Close(context.Background())

	registry := service.NewSessionRegistry(rt.Deps(), bootstrap.ChatConfig(cfg))
	archive := service.NewArchiveService(rt.Store, cfg.RecentLimit)

	router := handler.NewRouter(handler.RouterConfig{
		Registry:          registry,
		Archive:           archive,
		Store:             rt.Store,
		Logger:            log,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	rt.DrainSpool(ctx)
	go runMaintenance(ctx, cfg, rt, registry, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	if lost := registry.Shutdown(shutdownCtx); lost > 0 {
		log.Error("ended conversations lost at shutdown", zap.Int("count", lost))
	}

	log.Info("server stopped")
}

// runMaintenance drains the save spool and drops idle sessions until ctx ends.
func runMaintenance(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime, registry *service.SessionRegistry, log *logger.Logger) {
	interval := cfg.SpoolInterval
	if interval <= 0 {
		interval = time.Minute
	}
	spoolTicker := time.NewTicker(interval)
	defer spoolTicker.Stop()

	sweepTicker := time.NewTicker(time.Minute)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-spoolTicker.C:
			rt.DrainSpool(ctx)
		case <-sweepTicker.C:
			if n := registry.Sweep(ctx, cfg.SessionIdleTimeout); n > 0 {
				log.Info("dropped idle sessions", zap.Int("count", n))
			}
		}
	}
}
