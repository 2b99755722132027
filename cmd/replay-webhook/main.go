package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"ticketing-checkout/internal/app"
	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/logging"
)

// Replays a stored payment provider delivery through the webhook processor.
// Useful when the provider gave up retrying after an outage.
func main() {
	var (
		file      = flag.String("file", "", "Path to the raw webhook body (reads stdin when empty)")
		signature = flag.String("signature", "", "Signature header sent with the delivery")
		resign    = flag.Bool("resign", false, "Sign the payload with WEBHOOK_SECRET instead of using -signature")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.Server.LogLevel, cfg.Server.Env)

	var payload []byte
	if *file == "" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(*file)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read webhook payload")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	sig := *signature
	if *resign {
		sig = a.Webhooks.Sign(payload)
	}

	if err := a.Webhooks.HandleWebhook(ctx, payload, sig); err != nil {
		a.Close()
		logger.Fatal().Err(err).Msg("webhook replay failed")
	}
	logger.Info().Int("bytes", len(payload)).Msg("webhook replayed")
}
