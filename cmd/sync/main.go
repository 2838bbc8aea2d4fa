// Package main provides a one-shot synchronization tool: sync one user or
// every known user, then exit.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okx-folio/internal/circuitbreaker"
	"github.com/okx-folio/internal/config"
	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/okx"
	"github.com/okx-folio/internal/service"
	"github.com/okx-folio/internal/storage"
)

func main() {
	var (
		userID  = flag.Int64("user", 0, "External user id to sync (0 with -all syncs everyone)")
		all     = flag.Bool("all", false, "Sync every known user")
		timeout = flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if *userID == 0 && !*all {
		logger.Fatal("Either -user or -all is required")
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var valuations *storage.ValuationHistory
	if cfg.Database.ClickHouse.Host != "" {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		valuations = storage.NewValuationHistory(clickhouse)
	}

	userRepo := storage.NewUserRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailThreshold: cfg.Breaker.FailThreshold,
		ResetTimeout:  cfg.Breaker.ResetTimeout,
	})
	client := okx.NewClient(&cfg.OKX, cfg.Backoff, breaker)

	var recorder service.ValuationRecorder
	if valuations != nil {
		recorder = valuations
	}
	syncService := service.NewSyncService(userRepo, portfolioRepo, client, recorder)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ids := []int64{*userID}
	if *all {
		ids, err = userRepo.ListExternalIDs(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Failed to list users")
		}
	}

	failed := 0
	for _, id := range ids {
		if !syncService.Sync(ctx, id) {
			failed++
		}
	}

	logger.WithFields(map[string]interface{}{
		"users":  len(ids),
		"failed": failed,
	}).Info("Sync run complete")

	if failed > 0 {
		os.Exit(1)
	}
}
