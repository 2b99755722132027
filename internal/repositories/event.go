package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketing-checkout/internal/models"
)

// EventRepository handles event lookups
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new event repository
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// GetEventByID retrieves an event by ID
func (r *EventRepository) GetEventByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT id, title, start_date, status FROM events WHERE id = $1`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.StartDate,
		&event.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event with id %d: %w", id, models.ErrEventNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// Create inserts an event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.Status == "" {
		event.Status = models.StatusDraft
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO events (title, start_date, status) VALUES ($1, $2, $3) RETURNING id`,
		event.Title, event.StartDate, event.Status,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}
