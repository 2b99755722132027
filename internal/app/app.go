// Package app wires the checkout services to PostgreSQL, Redis and Kafka.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ticketing-checkout/internal/cache"
	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/events"
	"ticketing-checkout/internal/repositories"
	"ticketing-checkout/internal/services"
)

// App holds the process-wide connections and the services built on them
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	DB        *database.DB
	Redis     *redis.Client
	Store     *repositories.Store
	Carts     repositories.CartStore
	Publisher events.Publisher

	Validator  *services.CartValidator
	Promotions *services.PromotionService
	Cart       *services.CartService
	Checkout   *services.CheckoutService
	Lifecycle  *services.OrderLifecycleService
	Webhooks   *services.WebhookProcessor

	closers []func() error
}

// New connects to every backing service and builds the service graph.
// On error, anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logger.Info().Str("host", cfg.Database.Host).Msg("database connection established")

	rdb, err := cache.NewClient(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Publisher = kafkaPublisher
		a.closers = append(a.closers, kafkaPublisher.Close)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing order events to kafka")
	} else {
		a.Publisher = events.NopPublisher{}
		logger.Warn().Msg("KAFKA_BROKERS not set, order events are not published")
	}

	a.Store = repositories.NewStore(db.DB)
	a.Carts = cache.NewRedisCartStore(rdb, cfg.Checkout.CartTTL)

	a.Validator = services.NewCartValidator(a.Store.Tickets, cfg.Checkout.LowStockThreshold, cfg.Checkout.TicketFee, logger)
	a.Promotions = services.NewPromotionService(a.Store.Discounts, cfg.Checkout.TicketFee, logger)
	a.Cart = services.NewCartService(a.Carts, a.Store.Tickets, a.Validator, a.Promotions, logger)

	a.Checkout = services.NewCheckoutService(services.CheckoutDeps{
		Carts:      a.Carts,
		Orders:     a.Store.Orders,
		UnitOfWork: a.Store,
		Events:     a.Store.Events,
		Users:      a.Store.Users,
		Validator:  a.Validator,
		Promotions: a.Promotions,
		Publisher:  a.Publisher,
	}, cfg.Checkout.PaymentWindow, logger)

	a.Lifecycle = services.NewOrderLifecycleService(services.LifecycleDeps{
		UnitOfWork: a.Store,
		Orders:     a.Store.Orders,
		Tickets:    a.Store.Tickets,
		Payments:   a.Store.Payments,
		Carts:      a.Carts,
		Gateway:    services.NewManualPaymentGateway(cfg.Payment.Provider),
		Issuer:     services.NewTicketIssuer(cfg.Checkout.QRSecret),
		Publisher:  a.Publisher,
	}, logger)

	a.Webhooks = services.NewWebhookProcessor(
		cfg.Payment.WebhookSecret,
		cfg.Payment.Provider,
		a.Lifecycle,
		cache.NewRedisIdempotencyStore(rdb, cfg.Payment.WebhookDedupe),
		logger,
	)

	return a, nil
}

// Close releases connections in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("failed to close app: %w", errors.Join(errs...))
	}
	return nil
}

var _ services.IdempotencyStore = (*cache.RedisIdempotencyStore)(nil)
