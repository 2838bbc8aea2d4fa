// Package main provides the API server entry point for the portfolio
// service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okx-folio/internal/api"
	"github.com/okx-folio/internal/circuitbreaker"
	"github.com/okx-folio/internal/config"
	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/okx"
	"github.com/okx-folio/internal/service"
	"github.com/okx-folio/internal/storage"
	"github.com/okx-folio/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis and ClickHouse are optional; an empty host disables them
	var priceCache *storage.PriceCache
	if cfg.Database.Redis.Host != "" {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		priceCache = storage.NewPriceCache(redis, cfg.Database.Redis.PriceTTL)
		logger.Info("Price cache enabled")
	}

	var valuations *storage.ValuationHistory
	if cfg.Database.ClickHouse.Host != "" {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()

		valuations = storage.NewValuationHistory(clickhouse)
		if err := valuations.EnsureSchema(context.Background()); err != nil {
			logger.WithError(err).Fatal("Failed to prepare valuation history schema")
		}
		logger.Info("Valuation history enabled")
	}

	userRepo := storage.NewUserRepository(postgres)
	walletRepo := storage.NewWalletRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	tokenRepo := storage.NewTokenRepository(postgres)

	// One breaker instance shared by every call path
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailThreshold: cfg.Breaker.FailThreshold,
		ResetTimeout:  cfg.Breaker.ResetTimeout,
	})
	client := okx.NewClient(&cfg.OKX, cfg.Backoff, breaker)

	resolver := service.NewTokenResolver(tokenRepo)
	if err := resolver.SeedDefaults(context.Background()); err != nil {
		logger.WithError(err).Warn("Token seeding failed, constants fallback remains available")
	}

	var recorder service.ValuationRecorder
	if valuations != nil {
		recorder = valuations
	}
	syncService := service.NewSyncService(userRepo, portfolioRepo, client, recorder)
	analytics := service.NewAnalyticsService(portfolioRepo, client, resolver, priceCache)

	scheduler := worker.NewScheduler(userRepo, syncService, cfg.Sync.Interval, cfg.Sync.Workers)
	if err := scheduler.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start sync scheduler")
	}

	var history api.HistorySource
	if valuations != nil {
		history = valuations
	}
	server := api.NewServer(&api.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Deps{
		Users:     userRepo,
		Wallets:   walletRepo,
		Analytics: analytics,
		Syncer:    syncService,
		Quotes:    client,
		Tokens:    resolver,
		History:   history,
		Breaker:   breaker,
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()
	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("API server started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Scheduler shutdown failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Shutdown complete")
}
