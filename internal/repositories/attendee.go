package repositories

import (
	"context"
	"fmt"

	"ticketing-checkout/internal/models"
)

// AttendeeRepository handles attendees collected at checkout
type AttendeeRepository struct {
	db DBTX
}

// NewAttendeeRepository creates a new attendee repository
func NewAttendeeRepository(db DBTX) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

// Create inserts an attendee for an order
func (r *AttendeeRepository) Create(ctx context.Context, info models.AttendeeInfo, orderID int) (*models.Attendee, error) {
	attendee := &models.Attendee{
		OrderID:   orderID,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attendees (order_id, first_name, last_name, email) VALUES ($1, $2, $3, $4) RETURNING id`,
		orderID, info.FirstName, info.LastName, info.Email,
	).Scan(&attendee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendee: %w", err)
	}

	return attendee, nil
}

// FindUnassigned returns the order's attendees without a ticket, in creation order
func (r *AttendeeRepository) FindUnassigned(ctx context.Context, orderID int) ([]*models.Attendee, error) {
	query := `
		SELECT id, order_id, ticket_id, first_name, last_name, email
		FROM attendees
		WHERE order_id = $1 AND ticket_id IS NULL
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()

	var attendees []*models.Attendee
	for rows.Next() {
		a := &models.Attendee{}
		if err := rows.Scan(&a.ID, &a.OrderID, &a.TicketID, &a.FirstName, &a.LastName, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendees: %w", err)
	}

	return attendees, nil
}

// AssignTicket binds a ticket to an attendee and the attendee back to the ticket
func (r *AttendeeRepository) AssignTicket(ctx context.Context, attendeeID, ticketID int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE attendees SET ticket_id = $2 WHERE id = $1`, attendeeID, ticketID); err != nil {
		return fmt.Errorf("failed to assign ticket to attendee: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE tickets SET attendee_id = $2 WHERE id = $1`, ticketID, attendeeID); err != nil {
		return fmt.Errorf("failed to link attendee to ticket: %w", err)
	}
	return nil
}
