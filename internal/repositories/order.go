package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketing-checkout/internal/models"
)

// OrderRepository handles order data operations
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, order_number, user_id, event_id, cart_key, status, subtotal, total_amount,
	discount_amount, fees_amount, promo_code, billing_email, billing_name, notes,
	payment_deadline, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.EventID,
		&order.CartKey,
		&order.Status,
		&order.Subtotal,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.FeesAmount,
		&order.PromoCode,
		&order.BillingEmail,
		&order.BillingName,
		&order.Notes,
		&order.PaymentDeadline,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

// Create inserts the order and its items. A clashing order number yields
// ErrDuplicateOrderNumber without aborting the surrounding transaction.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	query := `
		INSERT INTO orders (order_number, user_id, event_id, cart_key, status, subtotal, total_amount,
			discount_amount, fees_amount, promo_code, billing_email, billing_name, notes,
			payment_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT ON CONSTRAINT orders_order_number_key DO NOTHING
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		order.OrderNumber,
		order.UserID,
		order.EventID,
		order.CartKey,
		order.Status,
		order.Subtotal,
		order.TotalAmount,
		order.DiscountAmount,
		order.FeesAmount,
		order.PromoCode,
		order.BillingEmail,
		order.BillingName,
		order.Notes,
		order.PaymentDeadline,
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, models.ErrDuplicateOrderNumber)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, ticket_type_id, ticket_type_name, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := r.db.QueryRowContext(ctx, itemQuery,
			item.OrderID,
			item.TicketTypeID,
			item.TicketTypeName,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an order and its items by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByOrderNumber retrieves an order and its items by order number
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

// GetForUpdate retrieves an order and locks its row until the transaction ends
func (r *OrderRepository) GetForUpdate(ctx context.Context, id int) (*models.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %v: %w", arg, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) getItems(ctx context.Context, orderID int) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, ticket_type_id, ticket_type_name, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.TicketTypeID,
			&item.TicketTypeName,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// FindPendingByCartKey takes a transaction-scoped advisory lock on the cart key,
// then returns the newest unexpired PENDING order placed from that cart.
// It must run inside a transaction or the lock is released immediately.
func (r *OrderRepository) FindPendingByCartKey(ctx context.Context, cartKey string, now time.Time) (*models.Order, error) {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cartKey); err != nil {
		return nil, fmt.Errorf("failed to lock cart %s: %w", cartKey, err)
	}

	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE cart_key = $1 AND status = $2 AND payment_deadline >= $3
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, cartKey, models.OrderPending, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pending order for cart %s: %w", cartKey, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to find pending order: %w", err)
	}

	items, err := r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// UpdateStatus updates the status and notes of an order
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, status models.OrderStatus, notes string) error {
	query := `
		UPDATE orders
		SET status = $2, notes = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, notes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("order with id %d: %w", id, models.ErrOrderNotFound)
	}

	return nil
}

// ListOverdue returns pending orders whose payment deadline has passed, oldest first
func (r *OrderRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE status = $1 AND payment_deadline < $2
		ORDER BY payment_deadline ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.OrderPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
