package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// CartService handles shopper cart operations. Every mutation runs as one
// atomic update of the identity's cart followed by a refresh.
type CartService struct {
	carts       repositories.CartStore
	ticketTypes repositories.TicketTypeStore
	validator   *CartValidator
	promotions  *PromotionService
	now         func() time.Time
	logger      zerolog.Logger
}

func NewCartService(
	carts repositories.CartStore,
	ticketTypes repositories.TicketTypeStore,
	validator *CartValidator,
	promotions *PromotionService,
	logger zerolog.Logger,
) *CartService {
	return &CartService{
		carts:       carts,
		ticketTypes: ticketTypes,
		validator:   validator,
		promotions:  promotions,
		now:         time.Now,
		logger:      logger.With().Str("component", "cart").Logger(),
	}
}

// refresh validates the cart against live ticket types and re-prices any promo code
func refresh(ctx context.Context, validator *CartValidator, promotions *PromotionService, cart *models.Cart) (*ValidationResult, error) {
	result, err := validator.Validate(ctx, cart)
	if err != nil {
		return nil, err
	}
	promotions.Recalculate(ctx, cart)
	return result, nil
}

func (s *CartService) update(ctx context.Context, id models.CartIdentity, mutate func(cart *models.Cart) error) (*ValidationResult, error) {
	var result *ValidationResult
	cart, err := s.carts.Update(ctx, id, func(cart *models.Cart) error {
		if mutate != nil {
			if err := mutate(cart); err != nil {
				return err
			}
		}
		r, err := refresh(ctx, s.validator, s.promotions, cart)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Cart = cart
	return result, nil
}

// GetCart returns the identity's cart after refreshing it
func (s *CartService) GetCart(ctx context.Context, id models.CartIdentity) (*ValidationResult, error) {
	return s.update(ctx, id, nil)
}

// AddItem adds quantity tickets of a type, merging with an existing line
func (s *CartService) AddItem(ctx context.Context, id models.CartIdentity, ticketTypeID, quantity int) (*ValidationResult, error) {
	if quantity <= 0 {
		return nil, models.NewCartError(models.CodeInvalidQuantity, "Quantity must be at least 1")
	}

	tt, err := s.ticketTypes.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		if errors.Is(err, models.ErrTicketTypeNotFound) {
			return nil, models.NewCartError(models.CodeTicketNotFound, "Ticket type not found")
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	now := s.now()
	if !tt.IsSaleOpen(now) {
		return nil, models.NewCartError(models.CodeTicketNotOnSale, fmt.Sprintf("%s is not on sale", tt.Name))
	}
	if tt.IsSoldOut() {
		return nil, models.NewCartError(models.CodeTicketOutOfStock, fmt.Sprintf("%s is sold out", tt.Name))
	}

	result, err := s.update(ctx, id, func(cart *models.Cart) error {
		if idx := cart.FindItem(ticketTypeID); idx >= 0 {
			cart.Items[idx].Quantity += quantity
			cart.Items[idx].ApplySnapshot(tt)
			return nil
		}
		item := models.CartItem{TicketTypeID: ticketTypeID, Quantity: quantity}
		item.ApplySnapshot(tt)
		cart.Items = append(cart.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("ticket_type_id", ticketTypeID).Int("quantity", quantity).Msg("added item to cart")
	return result, nil
}

// UpdateQuantity sets a line's quantity; zero removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, id models.CartIdentity, ticketTypeID, quantity int) (*ValidationResult, error) {
	if quantity < 0 {
		return nil, models.NewCartError(models.CodeInvalidQuantity, "Quantity cannot be negative")
	}

	return s.update(ctx, id, func(cart *models.Cart) error {
		idx := cart.FindItem(ticketTypeID)
		if idx < 0 {
			return models.NewCartError(models.CodeItemNotInCart, "Item is not in your cart")
		}
		if quantity == 0 {
			cart.RemoveItem(ticketTypeID)
			return nil
		}
		cart.Items[idx].Quantity = quantity
		cart.Items[idx].RecalculateTotal()
		return nil
	})
}

// RemoveItem drops a line from the cart
func (s *CartService) RemoveItem(ctx context.Context, id models.CartIdentity, ticketTypeID int) (*ValidationResult, error) {
	return s.update(ctx, id, func(cart *models.Cart) error {
		if !cart.RemoveItem(ticketTypeID) {
			return models.NewCartError(models.CodeItemNotInCart, "Item is not in your cart")
		}
		return nil
	})
}

// ApplyPromoCode refreshes the cart and applies code to it
func (s *CartService) ApplyPromoCode(ctx context.Context, id models.CartIdentity, code string) (*ValidationResult, error) {
	var result *ValidationResult
	cart, err := s.carts.Update(ctx, id, func(cart *models.Cart) error {
		r, err := s.validator.Validate(ctx, cart)
		if err != nil {
			return err
		}
		if _, err := s.promotions.ApplyPromoCode(ctx, cart, code); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Cart = cart
	return result, nil
}

// RemovePromoCode clears any applied promotion
func (s *CartService) RemovePromoCode(ctx context.Context, id models.CartIdentity) (*ValidationResult, error) {
	return s.update(ctx, id, func(cart *models.Cart) error {
		cart.ClearPromo()
		return nil
	})
}

// ClearCart removes the identity's cart
func (s *CartService) ClearCart(ctx context.Context, id models.CartIdentity) error {
	if err := s.carts.Clear(ctx, id); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

var _ CartServiceInterface = (*CartService)(nil)
