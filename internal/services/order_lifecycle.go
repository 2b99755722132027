package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ticketing-checkout/internal/events"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// OrderLifecycleService drives orders from PENDING to a terminal state.
// Every transition reads, checks and writes the order under its row lock.
type OrderLifecycleService struct {
	uow       repositories.UnitOfWork
	orders    repositories.OrderStore
	tickets   repositories.TicketStore
	payments  repositories.PaymentStore
	carts     repositories.CartStore
	gateway   PaymentGateway
	issuer    *TicketIssuer
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// LifecycleDeps groups the collaborators of the lifecycle service
type LifecycleDeps struct {
	UnitOfWork repositories.UnitOfWork
	Orders     repositories.OrderStore
	Tickets    repositories.TicketStore
	Payments   repositories.PaymentStore
	Carts      repositories.CartStore
	Gateway    PaymentGateway
	Issuer     *TicketIssuer
	Publisher  events.Publisher
}

func NewOrderLifecycleService(deps LifecycleDeps, logger zerolog.Logger) *OrderLifecycleService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderLifecycleService{
		uow:       deps.UnitOfWork,
		orders:    deps.Orders,
		tickets:   deps.Tickets,
		payments:  deps.Payments,
		carts:     deps.Carts,
		gateway:   deps.Gateway,
		issuer:    deps.Issuer,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("component", "order_lifecycle").Logger(),
	}
}

// GetOrder loads an order with its tickets and payments
func (s *OrderLifecycleService) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.tickets != nil {
		if order.Tickets, err = s.tickets.GetTicketsByOrder(ctx, orderID); err != nil {
			return nil, err
		}
	}
	if s.payments != nil {
		if order.Payments, err = s.payments.GetByOrder(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// FinalizeOrder applies a successful payment: it records the charge, issues
// tickets and marks the order PAID. Finalizing a PAID order is a no-op.
func (s *OrderLifecycleService) FinalizeOrder(ctx context.Context, orderID int, confirmation models.PaymentConfirmation) (*models.Order, error) {
	var order *models.Order
	alreadyPaid := false

	err := s.uow.Do(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if order.IsPaid() {
			alreadyPaid = true
			return loadChildren(ctx, repos, order)
		}
		if !order.CanBeFinalized() {
			return &models.StateError{OrderID: order.ID, Status: order.Status, Message: "Order is not in pending status"}
		}

		payment := s.gateway.BuildSuccessRecord(order, confirmation)
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		tickets, err := s.issuer.Issue(ctx, repos, order)
		if err != nil {
			return err
		}

		if err := repos.Orders.UpdateStatus(ctx, order.ID, models.OrderPaid, order.Notes); err != nil {
			return err
		}
		order.Status = models.OrderPaid
		order.Tickets = tickets
		order.Payments = []*models.Payment{payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		s.logger.Info().Int("order_id", orderID).Msg("order already paid, ignoring repeated finalize")
		return order, nil
	}

	if order.CartKey != "" && s.carts != nil {
		if err := s.carts.ClearByKey(ctx, order.CartKey); err != nil {
			s.logger.Error().Err(err).Int("order_id", order.ID).Msg("failed to clear cart after payment")
		}
	}

	s.logger.Info().Int("order_id", order.ID).Int("tickets", len(order.Tickets)).Msg("order paid")
	s.publish(ctx, events.OrderPaid, order)
	return order, nil
}

// ExpireOrder releases the inventory of a PENDING order whose payment window
// closed. Orders in any other status are left alone.
func (s *OrderLifecycleService) ExpireOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var order *models.Order
	skipped := false

	err := s.uow.Do(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsPending() {
			skipped = true
			return nil
		}
		return s.release(ctx, repos, order, models.OrderExpired)
	})
	if err != nil {
		return nil, err
	}

	if skipped {
		s.logger.Info().Int("order_id", orderID).Str("status", string(order.Status)).Msg("order is not pending, skipping expiry")
		return order, nil
	}

	s.logger.Info().Int("order_id", order.ID).Msg("order expired")
	s.publish(ctx, events.OrderExpired, order)
	return order, nil
}

// AbortOrder releases the inventory of a PENDING order whose payment failed
func (s *OrderLifecycleService) AbortOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var order *models.Order

	err := s.uow.Do(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsPending() {
			return &models.StateError{OrderID: order.ID, Status: order.Status, Message: "Order is not in pending status to be aborted"}
		}
		return s.release(ctx, repos, order, models.OrderAborted)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("order_id", order.ID).Msg("order aborted")
	s.publish(ctx, events.OrderAborted, order)
	return order, nil
}

// CancelOrder cancels a PENDING or PAID order. Paid orders are refunded and
// their tickets voided. The reason is appended to the order notes.
func (s *OrderLifecycleService) CancelOrder(ctx context.Context, orderID int, reason string) (*models.Order, error) {
	var order *models.Order

	err := s.uow.Do(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.CanBeCancelled() {
			return &models.StateError{OrderID: order.ID, Status: order.Status, Message: "Order cannot be cancelled"}
		}

		var paid *models.Order
		if order.RequiresRefund() {
			paid = order.Clone()
		}

		if _, err := repos.Tickets.CancelTicketsByOrder(ctx, order.ID); err != nil {
			return err
		}

		order.AppendNote(reason)
		if err := s.release(ctx, repos, order, models.OrderCancelled); err != nil {
			return err
		}
		if err := loadChildren(ctx, repos, order); err != nil {
			return err
		}
		if paid == nil {
			return nil
		}

		// A refund cannot be rolled back, so it is the last step before commit.
		refund, err := s.gateway.Refund(ctx, paid)
		if err != nil {
			return fmt.Errorf("failed to refund order %s: %w", order.OrderNumber, err)
		}
		if err := repos.Payments.Create(ctx, refund); err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}
		order.Payments = append(order.Payments, refund)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("order_id", order.ID).Str("reason", reason).Msg("order cancelled")
	s.publish(ctx, events.OrderCancelled, order)
	return order, nil
}

// ExpireOverdue expires up to limit PENDING orders past their payment
// deadline and returns how many were expired. Failures are logged per order.
func (s *OrderLifecycleService) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	overdue, err := s.orders.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue orders: %w", err)
	}

	expired := 0
	for _, o := range overdue {
		order, err := s.ExpireOrder(ctx, o.ID)
		if err != nil {
			s.logger.Error().Err(err).Int("order_id", o.ID).Msg("failed to expire overdue order")
			continue
		}
		if order.Status == models.OrderExpired {
			expired++
		}
	}
	return expired, nil
}

// release returns every order item's quantity to stock and moves the order to status
func (s *OrderLifecycleService) release(ctx context.Context, repos repositories.Repositories, order *models.Order, status models.OrderStatus) error {
	for _, item := range order.Items {
		released, err := repos.TicketTypes.ReleaseSold(ctx, item.TicketTypeID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to release %s: %w", item.TicketTypeName, err)
		}
		if released < item.Quantity {
			s.logger.Warn().
				Int("order_id", order.ID).
				Int("ticket_type_id", item.TicketTypeID).
				Int("requested", item.Quantity).
				Int("released", released).
				Msg("sold count was lower than order quantity")
		}
	}

	if err := repos.Orders.UpdateStatus(ctx, order.ID, status, order.Notes); err != nil {
		return err
	}
	order.Status = status
	return nil
}

func loadChildren(ctx context.Context, repos repositories.Repositories, order *models.Order) error {
	tickets, err := repos.Tickets.GetTicketsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	payments, err := repos.Payments.GetByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Tickets = tickets
	order.Payments = payments
	return nil
}

func (s *OrderLifecycleService) publish(ctx context.Context, eventType events.EventType, order *models.Order) {
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(eventType, order, s.now())); err != nil {
		s.logger.Error().Err(err).Int("order_id", order.ID).Str("event", string(eventType)).Msg("failed to publish order event")
	}
}

var _ OrderLifecycleServiceInterface = (*OrderLifecycleService)(nil)
