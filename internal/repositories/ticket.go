package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketing-checkout/internal/models"
)

// TicketRepository handles ticket type and ticket data operations
type TicketRepository struct {
	db DBTX
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db DBTX) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketTypeColumns = `
	tt.id, tt.event_id, e.title, tt.category_id, tt.name, tt.price,
	tt.quantity_available, tt.quantity_sold, tt.min_quantity, tt.max_quantity,
	tt.sale_start, tt.sale_end, tt.is_active, tt.created_at`

func scanTicketType(row interface{ Scan(...interface{}) error }) (*models.TicketType, error) {
	tt := &models.TicketType{}
	err := row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.EventTitle,
		&tt.CategoryID,
		&tt.Name,
		&tt.Price,
		&tt.QuantityAvailable,
		&tt.QuantitySold,
		&tt.MinQuantity,
		&tt.MaxQuantity,
		&tt.SaleStart,
		&tt.SaleEnd,
		&tt.IsActive,
		&tt.CreatedAt,
	)
	return tt, err
}

// CreateTicketType inserts a ticket type
func (r *TicketRepository) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	if err := tt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO ticket_types (event_id, category_id, name, price, quantity_available, quantity_sold,
			min_quantity, max_quantity, sale_start, sale_end, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tt.EventID,
		tt.CategoryID,
		tt.Name,
		tt.Price,
		tt.QuantityAvailable,
		tt.QuantitySold,
		tt.MinQuantity,
		tt.MaxQuantity,
		tt.SaleStart,
		tt.SaleEnd,
		tt.IsActive,
	).Scan(&tt.ID, &tt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket type: %w", err)
	}

	return nil
}

// GetTicketTypeByID retrieves a ticket type by ID
func (r *TicketRepository) GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error) {
	query := `SELECT` + ticketTypeColumns + `
		FROM ticket_types tt
		JOIN events e ON e.id = tt.event_id
		WHERE tt.id = $1`

	tt, err := scanTicketType(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return tt, nil
}

// GetTicketTypesByEvent retrieves all ticket types for an event
func (r *TicketRepository) GetTicketTypesByEvent(ctx context.Context, eventID int) ([]*models.TicketType, error) {
	query := `SELECT` + ticketTypeColumns + `
		FROM ticket_types tt
		JOIN events e ON e.id = tt.event_id
		WHERE tt.event_id = $1
		ORDER BY tt.price ASC, tt.id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}
	defer rows.Close()

	var ticketTypes []*models.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		ticketTypes = append(ticketTypes, tt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket types: %w", err)
	}

	return ticketTypes, nil
}

// IncrementSold adds qty to the sold counter if the result stays within the available quantity
func (r *TicketRepository) IncrementSold(ctx context.Context, id, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", models.ErrInvalidInput)
	}

	query := `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold + $2
		WHERE id = $1 AND quantity_sold + $2 <= quantity_available
		RETURNING quantity_sold`

	var sold int
	err := r.db.QueryRowContext(ctx, query, id, qty).Scan(&sold)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to increment sold count: %w", err)
	}

	// Nothing updated: either the row is missing or stock is short
	var available, current int
	err = r.db.QueryRowContext(ctx,
		"SELECT quantity_available, quantity_sold FROM ticket_types WHERE id = $1", id,
	).Scan(&available, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
		}
		return 0, fmt.Errorf("failed to check ticket availability: %w", err)
	}

	remaining := available - current
	if remaining < 0 {
		remaining = 0
	}
	return 0, fmt.Errorf("requested %d, only %d remaining: %w", qty, remaining, models.ErrInsufficientStock)
}

// ReleaseSold subtracts qty from the sold counter, floored at zero
func (r *TicketRepository) ReleaseSold(ctx context.Context, id, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}

	query := `
		WITH prev AS (
			SELECT id, quantity_sold FROM ticket_types WHERE id = $1 FOR UPDATE
		)
		UPDATE ticket_types tt
		SET quantity_sold = GREATEST(tt.quantity_sold - $2, 0)
		FROM prev
		WHERE tt.id = prev.id
		RETURNING prev.quantity_sold - tt.quantity_sold`

	var released int
	err := r.db.QueryRowContext(ctx, query, id, qty).Scan(&released)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
		}
		return 0, fmt.Errorf("failed to release sold count: %w", err)
	}

	return released, nil
}

// CreateTicket inserts an issued ticket
func (r *TicketRepository) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.Status == "" {
		ticket.Status = models.TicketActive
	}

	query := `
		INSERT INTO tickets (order_id, ticket_type_id, attendee_id, code, qr_payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		ticket.OrderID,
		ticket.TicketTypeID,
		ticket.AttendeeID,
		ticket.Code,
		ticket.QRPayload,
		ticket.Status,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// GetTicketsByOrder retrieves all tickets for an order
func (r *TicketRepository) GetTicketsByOrder(ctx context.Context, orderID int) ([]*models.Ticket, error) {
	query := `
		SELECT id, order_id, ticket_type_id, attendee_id, code, qr_payload, status, created_at
		FROM tickets
		WHERE order_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets by order: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket := &models.Ticket{}
		err := rows.Scan(
			&ticket.ID,
			&ticket.OrderID,
			&ticket.TicketTypeID,
			&ticket.AttendeeID,
			&ticket.Code,
			&ticket.QRPayload,
			&ticket.Status,
			&ticket.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// CancelTicketsByOrder voids every active ticket of an order
func (r *TicketRepository) CancelTicketsByOrder(ctx context.Context, orderID int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tickets SET status = $2 WHERE order_id = $1 AND status = $3",
		orderID, models.TicketCancelled, models.TicketActive,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel tickets: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}
