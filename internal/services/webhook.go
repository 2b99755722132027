package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ticketing-checkout/internal/models"
)

// ErrInvalidSignature is returned when a webhook payload fails signature verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Payment provider webhook event types
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutExpired            = "checkout.session.expired"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventPaymentIntentFailed        = "payment_intent.payment_failed"
)

const webhookScope = "webhook"

// WebhookEvent is the subset of the provider's event envelope the core reads
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string            `json:"id"`
			AmountTotal int64             `json:"amount_total"`
			Metadata    map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// OrderID extracts the order identifier carried in the event metadata
func (e *WebhookEvent) OrderID() (int, error) {
	raw, ok := e.Data.Object.Metadata["order_id"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("webhook event %s has no order_id: %w", e.ID, models.ErrInvalidInput)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("webhook event %s has invalid order_id %q: %w", e.ID, raw, models.ErrInvalidInput)
	}
	return id, nil
}

// WebhookProcessor verifies payment provider callbacks and routes them to the order lifecycle
type WebhookProcessor struct {
	secret    []byte
	provider  string
	lifecycle OrderLifecycleServiceInterface
	dedupe    IdempotencyStore
	logger    zerolog.Logger
}

// NewWebhookProcessor creates a processor. dedupe may be nil, in which case
// duplicate deliveries rely on the lifecycle's own idempotency.
func NewWebhookProcessor(secret, provider string, lifecycle OrderLifecycleServiceInterface, dedupe IdempotencyStore, logger zerolog.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		secret:    []byte(secret),
		provider:  provider,
		lifecycle: lifecycle,
		dedupe:    dedupe,
		logger:    logger.With().Str("component", "webhook").Logger(),
	}
}

// Sign returns the hex HMAC-SHA512 signature of payload
func (p *WebhookProcessor) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies the webhook signature
func (p *WebhookProcessor) VerifySignature(payload []byte, signature string) bool {
	if len(p.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(p.Sign(payload)))
}

// HandleWebhook verifies, de-duplicates and dispatches one provider event.
// A nil error means the delivery can be acknowledged.
func (p *WebhookProcessor) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !p.VerifySignature(payload, signature) {
		return ErrInvalidSignature
	}

	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return fmt.Errorf("webhook payload missing id or type: %w", models.ErrInvalidInput)
	}

	log := p.logger.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	if !isRoutedEvent(evt.Type) {
		log.Debug().Msg("ignoring unhandled webhook event")
		return nil
	}

	if p.dedupe != nil {
		fresh, err := p.dedupe.TryLock(ctx, webhookScope, evt.ID)
		if err != nil {
			return fmt.Errorf("failed to check webhook idempotency: %w", err)
		}
		if !fresh {
			log.Info().Msg("duplicate webhook delivery, skipping")
			return nil
		}
	}

	if err := p.dispatch(ctx, &evt, log); err != nil {
		if p.dedupe != nil {
			if releaseErr := p.dedupe.Release(ctx, webhookScope, evt.ID); releaseErr != nil {
				log.Error().Err(releaseErr).Msg("failed to release webhook idempotency key")
			}
		}
		return err
	}
	return nil
}

func isRoutedEvent(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutExpired,
		EventCheckoutAsyncPaymentFailed, EventPaymentIntentFailed:
		return true
	default:
		return false
	}
}

func (p *WebhookProcessor) dispatch(ctx context.Context, evt *WebhookEvent, log zerolog.Logger) error {
	orderID, err := evt.OrderID()
	if err != nil {
		return err
	}
	log = log.With().Int("order_id", orderID).Logger()

	switch evt.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		confirmation := models.PaymentConfirmation{
			Provider:    p.provider,
			ExternalRef: evt.Data.Object.ID,
			Amount:      decimal.New(evt.Data.Object.AmountTotal, -2),
		}
		if _, err := p.lifecycle.FinalizeOrder(ctx, orderID, confirmation); err != nil {
			if models.IsStateError(err) {
				log.Error().Err(err).Msg("payment completed for an order that can no longer be paid")
				return nil
			}
			return err
		}

	case EventCheckoutExpired:
		if _, err := p.lifecycle.ExpireOrder(ctx, orderID); err != nil {
			log.Error().Err(err).Msg("failed to expire order")
		}

	case EventCheckoutAsyncPaymentFailed, EventPaymentIntentFailed:
		if _, err := p.lifecycle.AbortOrder(ctx, orderID); err != nil {
			if models.IsStateError(err) {
				log.Warn().Err(err).Msg("payment failure for an order that is no longer pending")
				return nil
			}
			return err
		}
	}

	return nil
}
