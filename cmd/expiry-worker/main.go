// The expiry worker sweeps pending offers past their deadline and cascades
// the freed slots to the next eligible patients. It runs alongside the API
// server so expirations fire even when no patient ever responds.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/radiancehq/medspa-waitlist/internal/app/bootstrap"
	appconfig "github.com/radiancehq/medspa-waitlist/internal/config"
	"github.com/radiancehq/medspa-waitlist/internal/db"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required for the expiry worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	gateway := bootstrap.BuildGateway(cfg, logger)
	svc := bootstrap.BuildWaitlistService(pool, redisClient, cfg, gateway, nil, logger)

	logger.Info("expiry worker started", "interval", cfg.ExpirySweepInterval.String())

	ticker := time.NewTicker(cfg.ExpirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("expiry worker stopping")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, cfg.ExpirySweepInterval)
			expired, err := svc.ExpireStaleOffers(sweepCtx)
			cancel()
			if err != nil {
				logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				logger.Info("expiry sweep completed", "expired", expired)
			}
		}
	}
}
