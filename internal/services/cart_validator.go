package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// ValidationMessage describes one problem or change found while validating a cart
type ValidationMessage struct {
	Code         string          `json:"code"`
	Message      string          `json:"message"`
	TicketTypeID int             `json:"ticket_type_id,omitempty"`
	OldQuantity  int             `json:"old_quantity,omitempty"`
	NewQuantity  int             `json:"new_quantity,omitempty"`
	OldPrice     decimal.Decimal `json:"old_price"`
	NewPrice     decimal.Decimal `json:"new_price"`
}

// ValidationResult is the outcome of validating a cart. Errors block
// checkout; warnings are advisory.
type ValidationResult struct {
	IsValid    bool                `json:"is_valid"`
	HasChanges bool                `json:"has_changes"`
	Errors     []ValidationMessage `json:"errors"`
	Warnings   []ValidationMessage `json:"warnings"`
	Cart       *models.Cart        `json:"cart"`
}

func (r *ValidationResult) addError(msg ValidationMessage) {
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) addWarning(msg ValidationMessage) {
	r.Warnings = append(r.Warnings, msg)
}

// HasError reports whether an error with the given code was recorded
func (r *ValidationResult) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether a warning with the given code was recorded
func (r *ValidationResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// ErrorMessages returns the human-readable error messages in order
func (r *ValidationResult) ErrorMessages() []string {
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	return messages
}

// CartValidator re-checks cart lines against live ticket type state
type CartValidator struct {
	ticketTypes       repositories.TicketTypeStore
	lowStockThreshold int
	feePerTicket      decimal.Decimal
	now               func() time.Time
	logger            zerolog.Logger
}

// NewCartValidator creates a validator. lowStockThreshold <= 0 falls back to 5.
func NewCartValidator(ticketTypes repositories.TicketTypeStore, lowStockThreshold int, feePerTicket decimal.Decimal, logger zerolog.Logger) *CartValidator {
	if lowStockThreshold <= 0 {
		lowStockThreshold = 5
	}
	return &CartValidator{
		ticketTypes:       ticketTypes,
		lowStockThreshold: lowStockThreshold,
		feePerTicket:      feePerTicket,
		now:               time.Now,
		logger:            logger.With().Str("component", "cart_validator").Logger(),
	}
}

// Validate brings the cart in line with live ticket type state, mutating it
// in place, and reports what changed. It only fails for a nil cart.
func (v *CartValidator) Validate(ctx context.Context, cart *models.Cart) (*ValidationResult, error) {
	if cart == nil {
		return nil, models.ErrNilCart
	}

	result := &ValidationResult{Cart: cart}
	if cart.IsEmpty() {
		result.addError(ValidationMessage{Code: models.CodeCartEmpty, Message: "Your cart is empty"})
		cart.RecalculateTotals(v.feePerTicket)
		return result, nil
	}

	now := v.now()
	remove := make(map[int]bool)
	for i := range cart.Items {
		if v.validateItem(ctx, &cart.Items[i], now, result) {
			remove[i] = true
			result.HasChanges = true
		}
	}

	if len(remove) > 0 {
		kept := make([]models.CartItem, 0, len(cart.Items)-len(remove))
		for i, item := range cart.Items {
			if !remove[i] {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
	}

	if cart.IsEmpty() {
		result.addError(ValidationMessage{Code: models.CodeCartEmpty, Message: "Your cart is empty"})
	} else if len(cart.EventIDs()) > 1 {
		result.addError(ValidationMessage{
			Code:    models.CodeMixedEvents,
			Message: "Tickets from different events cannot be purchased in one order",
		})
	}

	cart.RecalculateTotals(v.feePerTicket)
	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// validateItem checks a single line and returns true if it must be removed
func (v *CartValidator) validateItem(ctx context.Context, item *models.CartItem, now time.Time, result *ValidationResult) bool {
	tt, err := v.ticketTypes.GetTicketTypeByID(ctx, item.TicketTypeID)
	if err != nil {
		if errors.Is(err, models.ErrTicketTypeNotFound) {
			result.addError(ValidationMessage{
				Code:         models.CodeTicketNotFound,
				Message:      fmt.Sprintf("%s is no longer available", itemLabel(item)),
				TicketTypeID: item.TicketTypeID,
			})
			return true
		}
		v.logger.Error().Err(err).Int("ticket_type_id", item.TicketTypeID).Msg("failed to look up ticket type during validation")
		result.addError(ValidationMessage{
			Code:         models.CodeValidationError,
			Message:      fmt.Sprintf("%s could not be validated", itemLabel(item)),
			TicketTypeID: item.TicketTypeID,
		})
		return true
	}

	if !tt.IsSaleOpen(now) {
		result.addError(ValidationMessage{
			Code:         models.CodeTicketNotOnSale,
			Message:      fmt.Sprintf("%s is not on sale", tt.Name),
			TicketTypeID: tt.ID,
		})
		return true
	}

	if !tt.Price.Equal(item.UnitPrice) {
		code := models.CodePriceIncreased
		verb := "increased"
		if tt.Price.LessThan(item.UnitPrice) {
			code = models.CodePriceDecreased
			verb = "decreased"
		}
		result.addWarning(ValidationMessage{
			Code:         code,
			Message:      fmt.Sprintf("The price of %s has %s from %s to %s", tt.Name, verb, item.UnitPrice.StringFixed(2), tt.Price.StringFixed(2)),
			TicketTypeID: tt.ID,
			OldPrice:     item.UnitPrice,
			NewPrice:     tt.Price,
		})
		item.UnitPrice = tt.Price
		item.RecalculateTotal()
		result.HasChanges = true
	}

	remaining := tt.Remaining()
	if remaining == 0 {
		result.addError(ValidationMessage{
			Code:         models.CodeTicketOutOfStock,
			Message:      fmt.Sprintf("%s is sold out", tt.Name),
			TicketTypeID: tt.ID,
		})
		return true
	}

	if item.Quantity > remaining {
		result.addWarning(ValidationMessage{
			Code:         models.CodeQuantityReducedStock,
			Message:      fmt.Sprintf("Only %d %s tickets remain; quantity reduced from %d", remaining, tt.Name, item.Quantity),
			TicketTypeID: tt.ID,
			OldQuantity:  item.Quantity,
			NewQuantity:  remaining,
		})
		item.Quantity = remaining
		result.HasChanges = true
	} else if remaining <= v.lowStockThreshold {
		result.addWarning(ValidationMessage{
			Code:         models.CodeLowStock,
			Message:      fmt.Sprintf("Only %d %s tickets left", remaining, tt.Name),
			TicketTypeID: tt.ID,
		})
	}

	if tt.MinQuantity > 0 && item.Quantity < tt.MinQuantity {
		result.addError(ValidationMessage{
			Code:         models.CodeQuantityBelowMinimum,
			Message:      fmt.Sprintf("%s requires at least %d tickets per order", tt.Name, tt.MinQuantity),
			TicketTypeID: tt.ID,
		})
	} else if tt.MaxQuantity > 0 && item.Quantity > tt.MaxQuantity {
		result.addWarning(ValidationMessage{
			Code:         models.CodeQuantityReducedLimit,
			Message:      fmt.Sprintf("%s is limited to %d tickets per order; quantity reduced from %d", tt.Name, tt.MaxQuantity, item.Quantity),
			TicketTypeID: tt.ID,
			OldQuantity:  item.Quantity,
			NewQuantity:  tt.MaxQuantity,
		})
		item.Quantity = tt.MaxQuantity
		result.HasChanges = true
	}

	item.ApplySnapshot(tt)
	return false
}

func itemLabel(item *models.CartItem) string {
	if item.Name != "" {
		return item.Name
	}
	return fmt.Sprintf("Ticket type %d", item.TicketTypeID)
}
