package services

import (
	"context"
	"time"

	"ticketing-checkout/internal/models"
)

// CartServiceInterface defines the interface for shopper cart operations
type CartServiceInterface interface {
	GetCart(ctx context.Context, id models.CartIdentity) (*ValidationResult, error)
	AddItem(ctx context.Context, id models.CartIdentity, ticketTypeID, quantity int) (*ValidationResult, error)
	UpdateQuantity(ctx context.Context, id models.CartIdentity, ticketTypeID, quantity int) (*ValidationResult, error)
	RemoveItem(ctx context.Context, id models.CartIdentity, ticketTypeID int) (*ValidationResult, error)
	ApplyPromoCode(ctx context.Context, id models.CartIdentity, code string) (*ValidationResult, error)
	RemovePromoCode(ctx context.Context, id models.CartIdentity) (*ValidationResult, error)
	ClearCart(ctx context.Context, id models.CartIdentity) error
}

// CheckoutServiceInterface defines the interface for turning carts into orders
type CheckoutServiceInterface interface {
	CreateOrderFromCart(ctx context.Context, id models.CartIdentity, req models.CheckoutRequest) (*models.Order, error)
}

// OrderLifecycleServiceInterface defines the order state transitions
type OrderLifecycleServiceInterface interface {
	GetOrder(ctx context.Context, orderID int) (*models.Order, error)
	FinalizeOrder(ctx context.Context, orderID int, confirmation models.PaymentConfirmation) (*models.Order, error)
	ExpireOrder(ctx context.Context, orderID int) (*models.Order, error)
	AbortOrder(ctx context.Context, orderID int) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID int, reason string) (*models.Order, error)
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// PaymentGateway is the payment provider as seen by the order lifecycle
type PaymentGateway interface {
	// BuildSuccessRecord turns a provider confirmation into a charge record
	BuildSuccessRecord(order *models.Order, confirmation models.PaymentConfirmation) *models.Payment
	// Refund returns the order's money to the buyer and describes the refund
	Refund(ctx context.Context, order *models.Order) (*models.Payment, error)
}

// IdempotencyStore remembers which keys were already processed
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}
