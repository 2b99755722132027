package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ticketing-checkout/internal/models"
)

// DiscountRepository handles promo code lookups
type DiscountRepository struct {
	db DBTX
}

// NewDiscountRepository creates a new discount repository
func NewDiscountRepository(db DBTX) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// FindByCode retrieves a discount by code, case-insensitively
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	code = models.CanonicalCode(code)
	if code == "" {
		return nil, fmt.Errorf("empty discount code: %w", models.ErrDiscountNotFound)
	}

	query := `
		SELECT id, code, type, percent_off, amount_off, event_id, ticket_category_id, ticket_type_ids,
			start_date, end_date, quantity_available, quantity_sold
		FROM discounts
		WHERE UPPER(code) = $1`

	d := &models.Discount{}
	var typeIDs pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&d.ID,
		&d.Code,
		&d.Type,
		&d.PercentOff,
		&d.AmountOff,
		&d.EventID,
		&d.TicketCategoryID,
		&typeIDs,
		&d.StartDate,
		&d.EndDate,
		&d.QuantityAvailable,
		&d.QuantitySold,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("discount %s: %w", code, models.ErrDiscountNotFound)
		}
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}

	for _, id := range typeIDs {
		d.TicketTypeIDs = append(d.TicketTypeIDs, int(id))
	}

	return d, nil
}

// Create inserts a discount
func (r *DiscountRepository) Create(ctx context.Context, d *models.Discount) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	typeIDs := make(pq.Int64Array, 0, len(d.TicketTypeIDs))
	for _, id := range d.TicketTypeIDs {
		typeIDs = append(typeIDs, int64(id))
	}

	query := `
		INSERT INTO discounts (code, type, percent_off, amount_off, event_id, ticket_category_id, ticket_type_ids,
			start_date, end_date, quantity_available, quantity_sold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		models.CanonicalCode(d.Code),
		d.Type,
		d.PercentOff,
		d.AmountOff,
		d.EventID,
		d.TicketCategoryID,
		typeIDs,
		d.StartDate,
		d.EndDate,
		d.QuantityAvailable,
		d.QuantitySold,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create discount: %w", err)
	}

	return nil
}
