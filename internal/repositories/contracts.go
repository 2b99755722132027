package repositories

import (
	"context"
	"time"

	"ticketing-checkout/internal/models"
)

// TicketTypeStore reads ticket types and moves the sold counter.
type TicketTypeStore interface {
	GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error)
	// IncrementSold adds qty to the sold counter only if the result stays within
	// the available quantity. It returns the applied count or ErrInsufficientStock.
	IncrementSold(ctx context.Context, id, qty int) (int, error)
	// ReleaseSold subtracts qty from the sold counter, floored at zero, and
	// returns how many units were actually released.
	ReleaseSold(ctx context.Context, id, qty int) (int, error)
}

// DiscountStore looks up promo codes
type DiscountStore interface {
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
}

// EventStore looks up events
type EventStore interface {
	GetEventByID(ctx context.Context, id int) (*models.Event, error)
}

// UserStore looks up buyers
type UserStore interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// OrderStore persists orders and their items
type OrderStore interface {
	// Create inserts the order and its items, assigning ids. A clashing order
	// number yields ErrDuplicateOrderNumber.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	// GetForUpdate loads the order and holds its row lock until the unit of work ends.
	GetForUpdate(ctx context.Context, id int) (*models.Order, error)
	// FindPendingByCartKey returns the newest PENDING order placed from the cart
	// whose payment deadline has not passed, or ErrOrderNotFound. Inside a unit
	// of work it holds a lock on the cart key until the unit of work ends.
	FindPendingByCartKey(ctx context.Context, cartKey string, now time.Time) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int, status models.OrderStatus, notes string) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Order, error)
}

// TicketStore persists issued tickets
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketsByOrder(ctx context.Context, orderID int) ([]*models.Ticket, error)
	CancelTicketsByOrder(ctx context.Context, orderID int) (int, error)
}

// AttendeeStore persists attendees collected at checkout
type AttendeeStore interface {
	Create(ctx context.Context, info models.AttendeeInfo, orderID int) (*models.Attendee, error)
	FindUnassigned(ctx context.Context, orderID int) ([]*models.Attendee, error)
	AssignTicket(ctx context.Context, attendeeID, ticketID int) error
}

// PaymentStore persists payment records
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrder(ctx context.Context, orderID int) ([]*models.Payment, error)
}

// Repositories is the set of stores bound to one unit of work
type Repositories struct {
	TicketTypes TicketTypeStore
	Orders      OrderStore
	Tickets     TicketStore
	Attendees   AttendeeStore
	Payments    PaymentStore
}

// UnitOfWork runs fn atomically. Any error returned by fn rolls back every write.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

// CartStore keeps one cart per identity
type CartStore interface {
	GetOrCreate(ctx context.Context, id models.CartIdentity) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, id models.CartIdentity) error
	// Update applies fn to the identity's cart as one atomic read-modify-write.
	// The cart is not saved if fn returns an error.
	Update(ctx context.Context, id models.CartIdentity, fn func(cart *models.Cart) error) (*models.Cart, error)
	ClearByKey(ctx context.Context, key string) error
}
