package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing-checkout/internal/app"
	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/logging"
)

func main() {
	var (
		limit    = flag.Int("limit", 0, "Maximum orders to expire per sweep (defaults to EXPIRE_BATCH_SIZE)")
		interval = flag.Duration("interval", 0, "Repeat the sweep on this interval; 0 runs a single sweep")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.Server.LogLevel, cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	batch := *limit
	if batch <= 0 {
		batch = cfg.Checkout.ExpireBatchSize
	}

	sweep := func() {
		expired, err := a.Lifecycle.ExpireOverdue(ctx, time.Now(), batch)
		if err != nil {
			logger.Error().Err(err).Msg("expiry sweep failed")
			return
		}
		logger.Info().Int("expired", expired).Int("limit", batch).Msg("expiry sweep finished")
	}

	sweep()
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
