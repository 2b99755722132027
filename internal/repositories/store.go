package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories run inside or outside a transaction
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store bundles the PostgreSQL repositories and runs units of work in a transaction
type Store struct {
	db *sql.DB

	Tickets   *TicketRepository
	Discounts *DiscountRepository
	Events    *EventRepository
	Users     *UserRepository
	Orders    *OrderRepository
	Attendees *AttendeeRepository
	Payments  *PaymentRepository
}

// NewStore creates a store over the connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		Tickets:   NewTicketRepository(db),
		Discounts: NewDiscountRepository(db),
		Events:    NewEventRepository(db),
		Users:     NewUserRepository(db),
		Orders:    NewOrderRepository(db),
		Attendees: NewAttendeeRepository(db),
		Payments:  NewPaymentRepository(db),
	}
}

// Do runs fn inside a single transaction. The transaction commits only if fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(repos Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tickets := NewTicketRepository(tx)
	repos := Repositories{
		TicketTypes: tickets,
		Orders:      NewOrderRepository(tx),
		Tickets:     tickets,
		Attendees:   NewAttendeeRepository(tx),
		Payments:    NewPaymentRepository(tx),
	}

	if err := fn(repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Interface assertions
var (
	_ UnitOfWork      = (*Store)(nil)
	_ TicketTypeStore = (*TicketRepository)(nil)
	_ TicketStore     = (*TicketRepository)(nil)
	_ DiscountStore   = (*DiscountRepository)(nil)
	_ EventStore      = (*EventRepository)(nil)
	_ UserStore       = (*UserRepository)(nil)
	_ OrderStore      = (*OrderRepository)(nil)
	_ AttendeeStore   = (*AttendeeRepository)(nil)
	_ PaymentStore    = (*PaymentRepository)(nil)
)
