package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ticketing-checkout/internal/events"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

const maxOrderNumberAttempts = 5

const supersededNote = "Superseded by a newer checkout of the same cart"

// CheckoutService turns a validated cart into a pending order and commits its inventory
type CheckoutService struct {
	carts          repositories.CartStore
	orders         repositories.OrderStore
	uow            repositories.UnitOfWork
	events         repositories.EventStore
	users          repositories.UserStore
	validator      *CartValidator
	promotions     *PromotionService
	publisher      events.Publisher
	paymentWindow  time.Duration
	now            func() time.Time
	newOrderNumber func(time.Time) string
	logger         zerolog.Logger
}

// CheckoutDeps groups the collaborators of the checkout service
type CheckoutDeps struct {
	Carts      repositories.CartStore
	Orders     repositories.OrderStore
	UnitOfWork repositories.UnitOfWork
	Events     repositories.EventStore
	Users      repositories.UserStore
	Validator  *CartValidator
	Promotions *PromotionService
	Publisher  events.Publisher
}

func NewCheckoutService(deps CheckoutDeps, paymentWindow time.Duration, logger zerolog.Logger) *CheckoutService {
	if paymentWindow <= 0 {
		paymentWindow = 30 * time.Minute
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CheckoutService{
		carts:          deps.Carts,
		orders:         deps.Orders,
		uow:            deps.UnitOfWork,
		events:         deps.Events,
		users:          deps.Users,
		validator:      deps.Validator,
		promotions:     deps.Promotions,
		publisher:      publisher,
		paymentWindow:  paymentWindow,
		now:            time.Now,
		newOrderNumber: models.GenerateOrderNumber,
		logger:         logger.With().Str("component", "checkout").Logger(),
	}
}

// CreateOrderFromCart refreshes the identity's cart and, if it is valid,
// persists a PENDING order and commits its inventory in one unit of work.
// Submitting an unchanged cart again returns the order already pending for it.
// If the cart changed, that order is cancelled and its stock released first.
func (s *CheckoutService) CreateOrderFromCart(ctx context.Context, id models.CartIdentity, req models.CheckoutRequest) (*models.Order, error) {
	cartKey, err := id.Key()
	if err != nil {
		return nil, err
	}

	user := s.resolveUser(ctx, id)

	billingEmail := strings.TrimSpace(req.BillingEmail)
	billingName := strings.TrimSpace(req.BillingName)
	if user != nil {
		if billingEmail == "" {
			billingEmail = user.Email
		}
		if billingName == "" {
			billingName = user.FullName()
		}
	}

	// Checked before the refresh: the pending order's own reservation would
	// otherwise make the validator trim the cart it was placed from.
	if pending, err := s.pendingOrder(ctx, id, cartKey, billingEmail, billingName); err != nil {
		return nil, err
	} else if pending != nil {
		s.logger.Info().
			Int("order_id", pending.ID).
			Str("order_number", pending.OrderNumber).
			Msg("cart already has a pending order, returning it")
		return pending, nil
	}

	var result *ValidationResult
	cart, err := s.carts.Update(ctx, id, func(cart *models.Cart) error {
		r, err := refresh(ctx, s.validator, s.promotions, cart)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh cart: %w", err)
	}

	if !result.IsValid {
		return nil, models.NewCartError(models.CodeCheckoutBlocked, strings.Join(result.ErrorMessages(), ", "))
	}
	if cart.IsEmpty() {
		return nil, models.NewCartError(models.CodeCartEmpty, "Your cart is empty")
	}

	if err := models.ValidateBillingInfo(billingEmail, billingName); err != nil {
		return nil, models.NewCartError(models.CodeInvalidBilling, err.Error())
	}

	for _, attendee := range req.Attendees {
		if err := attendee.Validate(); err != nil {
			return nil, models.NewCartError(models.CodeInvalidAttendee, err.Error())
		}
	}

	eventID := cart.Items[0].EventID
	if _, err := s.events.GetEventByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to get event for order: %w", err)
	}

	now := s.now()
	order := &models.Order{
		EventID:         eventID,
		CartKey:         cartKey,
		Status:          models.OrderPending,
		Subtotal:        cart.Subtotal,
		TotalAmount:     cart.Total,
		DiscountAmount:  cart.Discount,
		FeesAmount:      cart.Fees,
		PromoCode:       cart.PromoCode,
		BillingEmail:    billingEmail,
		BillingName:     billingName,
		Notes:           strings.TrimSpace(req.Notes),
		PaymentDeadline: now.Add(s.paymentWindow),
		CreatedAt:       now,
	}
	if user != nil {
		order.UserID = user.ID
	}

	var existing, superseded *models.Order
	err = s.uow.Do(ctx, func(repos repositories.Repositories) error {
		pending, err := repos.Orders.FindPendingByCartKey(ctx, cartKey, now)
		switch {
		case err == nil:
			if pending.MatchesCart(cart) && pending.BillingEmail == billingEmail && pending.BillingName == billingName {
				existing = pending
				return nil
			}
			if err := s.supersede(ctx, repos, pending); err != nil {
				return err
			}
			superseded = pending
		case !errors.Is(err, models.ErrOrderNotFound):
			return fmt.Errorf("failed to look up pending order: %w", err)
		}

		order.Items = order.Items[:0]
		for _, item := range cart.Items {
			tt, err := repos.TicketTypes.GetTicketTypeByID(ctx, item.TicketTypeID)
			if err != nil {
				return fmt.Errorf("failed to get ticket type %d: %w", item.TicketTypeID, err)
			}
			if !tt.IsSaleOpen(now) {
				return models.NewCartError(models.CodeTicketNotOnSale, fmt.Sprintf("%s is not on sale", tt.Name))
			}
			if remaining := tt.Remaining(); item.Quantity > remaining {
				return outOfStock(tt.Name, fmt.Errorf("requested %d, only %d remaining: %w", item.Quantity, remaining, models.ErrInsufficientStock))
			}
			order.Items = append(order.Items, models.OrderItem{
				TicketTypeID:   tt.ID,
				TicketTypeName: tt.Name,
				Quantity:       item.Quantity,
				UnitPrice:      item.UnitPrice,
				TotalPrice:     item.TotalPrice,
			})
		}

		if err := s.createOrder(ctx, repos, order, now); err != nil {
			return err
		}

		for _, info := range req.Attendees {
			if _, err := repos.Attendees.Create(ctx, info, order.ID); err != nil {
				return fmt.Errorf("failed to create attendee: %w", err)
			}
		}

		// The conditional increment is the authoritative stock check; the
		// re-check above only produces a friendlier error.
		for _, item := range order.Items {
			if _, err := repos.TicketTypes.IncrementSold(ctx, item.TicketTypeID, item.Quantity); err != nil {
				if errors.Is(err, models.ErrInsufficientStock) {
					return outOfStock(item.TicketTypeName, err)
				}
				return fmt.Errorf("failed to reserve %s: %w", item.TicketTypeName, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		s.logger.Info().
			Int("order_id", existing.ID).
			Str("order_number", existing.OrderNumber).
			Msg("cart already has a pending order, returning it")
		return existing, nil
	}

	if superseded != nil {
		s.logger.Info().
			Int("order_id", superseded.ID).
			Str("order_number", superseded.OrderNumber).
			Msg("pending order superseded by a changed cart")
		if err := s.publisher.Publish(ctx, events.NewOrderEvent(events.OrderCancelled, superseded, now)); err != nil {
			s.logger.Error().Err(err).Int("order_id", superseded.ID).Msg("failed to publish order cancelled event")
		}
	}

	s.logger.Info().
		Int("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order created")

	if err := s.publisher.Publish(ctx, events.NewOrderEvent(events.OrderCreated, order, now)); err != nil {
		s.logger.Error().Err(err).Int("order_id", order.ID).Msg("failed to publish order created event")
	}

	return order, nil
}

// pendingOrder returns the unexpired PENDING order placed from the identity's
// cart when neither the stored cart nor the billing details changed since.
func (s *CheckoutService) pendingOrder(ctx context.Context, id models.CartIdentity, cartKey, billingEmail, billingName string) (*models.Order, error) {
	if s.orders == nil {
		return nil, nil
	}
	order, err := s.orders.FindPendingByCartKey(ctx, cartKey, s.now())
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up pending order: %w", err)
	}
	cart, err := s.carts.GetOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if !order.MatchesCart(cart) || order.BillingEmail != billingEmail || order.BillingName != billingName {
		return nil, nil
	}
	return order, nil
}

// supersede cancels a pending order whose cart has since changed and returns
// its stock, so the new order is checked against the freed quantity.
func (s *CheckoutService) supersede(ctx context.Context, repos repositories.Repositories, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := repos.TicketTypes.ReleaseSold(ctx, item.TicketTypeID, item.Quantity); err != nil {
			return fmt.Errorf("failed to release %s: %w", item.TicketTypeName, err)
		}
	}
	order.AppendNote(supersededNote)
	if err := repos.Orders.UpdateStatus(ctx, order.ID, models.OrderCancelled, order.Notes); err != nil {
		return fmt.Errorf("failed to cancel superseded order %s: %w", order.OrderNumber, err)
	}
	order.Status = models.OrderCancelled
	return nil
}

func outOfStock(name string, err error) *models.CartError {
	return &models.CartError{
		Code:    models.CodeTicketOutOfStock,
		Message: fmt.Sprintf("%s: %v", name, err),
		Err:     err,
	}
}

// createOrder persists the order, drawing a fresh order number on collision
func (s *CheckoutService) createOrder(ctx context.Context, repos repositories.Repositories, order *models.Order, now time.Time) error {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.newOrderNumber(now)
		err := repos.Orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrDuplicateOrderNumber) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		s.logger.Warn().Str("order_number", order.OrderNumber).Msg("order number collision, retrying")
	}
	return fmt.Errorf("failed to generate unique order number after %d attempts: %w", maxOrderNumberAttempts, models.ErrDuplicateOrderNumber)
}

// resolveUser returns the logged-in buyer, or nil for a guest checkout
func (s *CheckoutService) resolveUser(ctx context.Context, id models.CartIdentity) *models.User {
	if id.UserID <= 0 || s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn().Int("user_id", id.UserID).Msg("user not found, continuing as guest checkout")
		} else {
			s.logger.Error().Err(err).Int("user_id", id.UserID).Msg("failed to load user, continuing as guest checkout")
		}
		return nil
	}
	return user
}

var _ CheckoutServiceInterface = (*CheckoutService)(nil)
