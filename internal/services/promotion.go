package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// PromotionService resolves promo codes and prices them against a cart
type PromotionService struct {
	discounts    repositories.DiscountStore
	feePerTicket decimal.Decimal
	now          func() time.Time
	logger       zerolog.Logger
}

func NewPromotionService(discounts repositories.DiscountStore, feePerTicket decimal.Decimal, logger zerolog.Logger) *PromotionService {
	return &PromotionService{
		discounts:    discounts,
		feePerTicket: feePerTicket,
		now:          time.Now,
		logger:       logger.With().Str("component", "promotion").Logger(),
	}
}

// ApplyPromoCode prices code against the cart and stores the discount on it.
// A blank code removes any applied promotion. User-correctable failures are
// returned as *models.CartError and leave the cart untouched.
func (s *PromotionService) ApplyPromoCode(ctx context.Context, cart *models.Cart, code string) (*models.Cart, error) {
	if cart == nil {
		return nil, models.ErrNilCart
	}

	if strings.TrimSpace(code) == "" {
		cart.ClearPromo()
		cart.RecalculateTotals(s.feePerTicket)
		return cart, nil
	}

	cart.RecalculateTotals(s.feePerTicket)
	discount, amount, err := s.price(ctx, cart, code)
	if err != nil {
		return nil, err
	}

	cart.PromoCode = discount.Code
	cart.Discount = amount
	cart.RecalculateTotals(s.feePerTicket)
	return cart, nil
}

// Recalculate re-prices the applied promo code after the cart changed. It
// never fails: a code that no longer applies is dropped from the cart.
func (s *PromotionService) Recalculate(ctx context.Context, cart *models.Cart) *models.Cart {
	if cart == nil || strings.TrimSpace(cart.PromoCode) == "" {
		return cart
	}

	cart.RecalculateTotals(s.feePerTicket)
	discount, amount, err := s.price(ctx, cart, cart.PromoCode)
	if err != nil {
		s.logger.Debug().Err(err).Str("promo_code", cart.PromoCode).Msg("dropping promo code that no longer applies")
		cart.ClearPromo()
		cart.RecalculateTotals(s.feePerTicket)
		return cart
	}

	cart.PromoCode = discount.Code
	cart.Discount = amount
	cart.RecalculateTotals(s.feePerTicket)
	return cart
}

func (s *PromotionService) price(ctx context.Context, cart *models.Cart, code string) (*models.Discount, decimal.Decimal, error) {
	discount, err := s.discounts.FindByCode(ctx, models.CanonicalCode(code))
	if err != nil {
		if errors.Is(err, models.ErrDiscountNotFound) {
			return nil, decimal.Zero, models.NewCartError(models.CodePromoInvalid, "Invalid promo code")
		}
		return nil, decimal.Zero, err
	}

	now := s.now()
	if discount.NotYetActive(now) {
		return nil, decimal.Zero, models.NewCartError(models.CodePromoNotActive, "Promo not yet active")
	}
	if discount.IsExpired(now) {
		return nil, decimal.Zero, models.NewCartError(models.CodePromoExpired, "Promo expired")
	}
	// Advisory only: usage is counted elsewhere, so concurrent carts can pass this check together.
	if discount.UsageLimitReached() {
		return nil, decimal.Zero, models.NewCartError(models.CodePromoLimitReached, "Promo usage limit reached")
	}

	amount := discount.Amount(eligibleAmount(discount, cart))
	if !amount.IsPositive() {
		return nil, decimal.Zero, models.NewCartError(models.CodePromoNotApplicable, "Promo not applicable")
	}

	discount.Code = models.CanonicalCode(discount.Code)
	return discount, amount, nil
}

// eligibleAmount sums the lines the discount applies to; an unscoped discount covers the subtotal
func eligibleAmount(discount *models.Discount, cart *models.Cart) decimal.Decimal {
	if !discount.IsScoped() {
		return cart.Subtotal
	}
	total := decimal.Zero
	for _, item := range cart.Items {
		if discount.AppliesTo(item) {
			total = total.Add(item.TotalPrice)
		}
	}
	return total
}
