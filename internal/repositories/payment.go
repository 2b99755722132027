package repositories

import (
	"context"
	"fmt"
	"time"

	"ticketing-checkout/internal/models"
)

// PaymentRepository handles charge and refund records
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment record
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payments (order_id, kind, provider, external_ref, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		payment.OrderID,
		payment.Kind,
		payment.Provider,
		payment.ExternalRef,
		payment.Amount,
		payment.Status,
		payment.CreatedAt,
	).Scan(&payment.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByOrder returns the payments recorded for an order, oldest first
func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID int) ([]*models.Payment, error) {
	query := `
		SELECT id, order_id, kind, provider, external_ref, amount, status, created_at
		FROM payments
		WHERE order_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		err := rows.Scan(&p.ID, &p.OrderID, &p.Kind, &p.Provider, &p.ExternalRef, &p.Amount, &p.Status, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
