package models

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTicketTypeNotFound   = errors.New("ticket type not found")
	ErrDiscountNotFound     = errors.New("discount not found")
	ErrInsufficientStock    = errors.New("insufficient ticket stock")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrInvalidCartIdentity  = errors.New("cart identity requires a session or user id")
	ErrNilCart              = errors.New("cart is nil")
	ErrInvalidInput         = errors.New("invalid input")
)

// Machine-readable codes carried by CartError and validation messages.
const (
	CodeTicketNotFound       = "TICKET_NOT_FOUND"
	CodeTicketNotOnSale      = "TICKET_NOT_ON_SALE"
	CodeTicketOutOfStock     = "TICKET_OUT_OF_STOCK"
	CodePriceIncreased       = "PRICE_INCREASED"
	CodePriceDecreased       = "PRICE_DECREASED"
	CodeQuantityReducedStock = "QUANTITY_REDUCED_STOCK"
	CodeQuantityReducedLimit = "QUANTITY_REDUCED_LIMIT"
	CodeQuantityBelowMinimum = "QUANTITY_BELOW_MINIMUM"
	CodeLowStock             = "LOW_STOCK"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeCartEmpty            = "CART_EMPTY"
	CodeMixedEvents          = "MIXED_EVENTS"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeItemNotInCart        = "ITEM_NOT_IN_CART"
	CodeCheckoutBlocked      = "CHECKOUT_BLOCKED"
	CodeInvalidBilling       = "INVALID_BILLING"
	CodeInvalidAttendee      = "INVALID_ATTENDEE"

	CodePromoInvalid       = "PROMO_INVALID"
	CodePromoNotActive     = "PROMO_NOT_ACTIVE"
	CodePromoExpired       = "PROMO_EXPIRED"
	CodePromoLimitReached  = "PROMO_LIMIT_REACHED"
	CodePromoNotApplicable = "PROMO_NOT_APPLICABLE"
)

// CartError is a user-correctable cart or checkout failure. Err, when set,
// is the underlying cause and stays visible to errors.Is.
type CartError struct {
	Code    string
	Message string
	Err     error
}

func (e *CartError) Error() string {
	return e.Message
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// NewCartError creates a cart error with the given code and message
func NewCartError(code, message string) *CartError {
	return &CartError{Code: code, Message: message}
}

// StateError reports an order transition attempted from the wrong status.
type StateError struct {
	OrderID int
	Status  OrderStatus
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s (order %d is %s)", e.Message, e.OrderID, e.Status)
}

// IsCartError reports whether err is a CartError, optionally with one of the given codes
func IsCartError(err error, codes ...string) bool {
	var cartErr *CartError
	if !errors.As(err, &cartErr) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if cartErr.Code == code {
			return true
		}
	}
	return false
}

// IsStateError reports whether err is an order state conflict
func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}
