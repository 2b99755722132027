// Package memory provides in-process implementations of the repository
// contracts. A unit of work runs against a private copy of the state and
// swaps it in only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

type state struct {
	events       map[int]*models.Event
	users        map[int]*models.User
	ticketTypes  map[int]*models.TicketType
	discounts    map[string]*models.Discount
	orders       map[int]*models.Order
	orderNumbers map[string]int
	tickets      map[int]*models.Ticket
	attendees    map[int]*models.Attendee
	payments     map[int]*models.Payment
	lastID       int
}

func newState() *state {
	return &state{
		events:       make(map[int]*models.Event),
		users:        make(map[int]*models.User),
		ticketTypes:  make(map[int]*models.TicketType),
		discounts:    make(map[string]*models.Discount),
		orders:       make(map[int]*models.Order),
		orderNumbers: make(map[string]int),
		tickets:      make(map[int]*models.Ticket),
		attendees:    make(map[int]*models.Attendee),
		payments:     make(map[int]*models.Payment),
	}
}

func (st *state) nextID() int {
	st.lastID++
	return st.lastID
}

func (st *state) clone() *state {
	c := newState()
	c.lastID = st.lastID
	for id, e := range st.events {
		ec := *e
		c.events[id] = &ec
	}
	for id, u := range st.users {
		uc := *u
		c.users[id] = &uc
	}
	for id, tt := range st.ticketTypes {
		c.ticketTypes[id] = cloneTicketType(tt)
	}
	for code, d := range st.discounts {
		c.discounts[code] = cloneDiscount(d)
	}
	for id, o := range st.orders {
		c.orders[id] = o.Clone()
	}
	for num, id := range st.orderNumbers {
		c.orderNumbers[num] = id
	}
	for id, t := range st.tickets {
		c.tickets[id] = cloneTicket(t)
	}
	for id, a := range st.attendees {
		c.attendees[id] = cloneAttendee(a)
	}
	for id, p := range st.payments {
		pc := *p
		c.payments[id] = &pc
	}
	return c
}

func cloneTicketType(tt *models.TicketType) *models.TicketType {
	c := *tt
	return &c
}

func cloneDiscount(d *models.Discount) *models.Discount {
	c := *d
	c.TicketTypeIDs = append([]int(nil), d.TicketTypeIDs...)
	return &c
}

func cloneTicket(t *models.Ticket) *models.Ticket {
	c := *t
	if t.AttendeeID != nil {
		id := *t.AttendeeID
		c.AttendeeID = &id
	}
	return &c
}

func cloneAttendee(a *models.Attendee) *models.Attendee {
	c := *a
	if a.TicketID != nil {
		id := *a.TicketID
		c.TicketID = &id
	}
	return &c
}

// Store is an in-memory catalog and order store. Units of work are serialized
// by a single mutex, which also stands in for row locks.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// Do runs fn against a copy of the state and commits the copy only if fn returns nil
func (s *Store) Do(ctx context.Context, fn func(repos repositories.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	v := view{st: working}
	repos := repositories.Repositories{
		TicketTypes: ticketTypeView{v},
		Orders:      orderView{v},
		Tickets:     ticketView{v},
		Attendees:   attendeeView{v},
		Payments:    paymentView{v},
	}

	if err := fn(repos); err != nil {
		return err
	}

	s.state = working
	return nil
}

// TicketTypes returns a ticket type store outside any unit of work
func (s *Store) TicketTypes() repositories.TicketTypeStore {
	return ticketTypeView{view{store: s}}
}

// Discounts returns the promo code store
func (s *Store) Discounts() repositories.DiscountStore {
	return discountView{view{store: s}}
}

// Events returns the event store
func (s *Store) Events() repositories.EventStore {
	return eventView{view{store: s}}
}

// Users returns the user store
func (s *Store) Users() repositories.UserStore {
	return userView{view{store: s}}
}

// Orders returns an order store outside any unit of work
func (s *Store) Orders() repositories.OrderStore {
	return orderView{view{store: s}}
}

// Tickets returns a ticket store outside any unit of work
func (s *Store) Tickets() repositories.TicketStore {
	return ticketView{view{store: s}}
}

// Payments returns a payment store outside any unit of work
func (s *Store) Payments() repositories.PaymentStore {
	return paymentView{view{store: s}}
}

// PutEvent inserts or replaces an event, assigning an id when missing
func (s *Store) PutEvent(event models.Event) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == 0 {
		event.ID = s.state.nextID()
	}
	s.state.events[event.ID] = &event
	c := event
	return &c
}

// PutUser inserts or replaces a user, assigning an id when missing
func (s *Store) PutUser(user models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = s.state.nextID()
	}
	s.state.users[user.ID] = &user
	c := user
	return &c
}

// PutTicketType inserts or replaces a ticket type, assigning an id when missing
func (s *Store) PutTicketType(tt models.TicketType) *models.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tt.ID == 0 {
		tt.ID = s.state.nextID()
	}
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = time.Now()
	}
	s.state.ticketTypes[tt.ID] = cloneTicketType(&tt)
	return cloneTicketType(&tt)
}

// PutDiscount inserts or replaces a discount under its canonical code
func (s *Store) PutDiscount(d models.Discount) *models.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.state.nextID()
	}
	d.Code = models.CanonicalCode(d.Code)
	s.state.discounts[d.Code] = cloneDiscount(&d)
	return cloneDiscount(&d)
}

// Attendees returns the attendees recorded for an order
func (s *Store) Attendees(orderID int) []*models.Attendee {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Attendee
	for _, a := range s.state.attendees {
		if a.OrderID == orderID {
			out = append(out, cloneAttendee(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderCount returns the number of persisted orders
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// view reads either a unit-of-work copy (st set) or the live state under the store lock
type view struct {
	store *Store
	st    *state
}

func (v view) acquire() (*state, func()) {
	if v.st != nil {
		return v.st, func() {}
	}
	v.store.mu.Lock()
	return v.store.state, v.store.mu.Unlock
}

type ticketTypeView struct{ view }

func (v ticketTypeView) GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error) {
	st, release := v.acquire()
	defer release()
	tt, ok := st.ticketTypes[id]
	if !ok {
		return nil, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
	}
	c := cloneTicketType(tt)
	if e, ok := st.events[tt.EventID]; ok && c.EventTitle == "" {
		c.EventTitle = e.Title
	}
	return c, nil
}

func (v ticketTypeView) IncrementSold(ctx context.Context, id, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", models.ErrInvalidInput)
	}
	st, release := v.acquire()
	defer release()
	tt, ok := st.ticketTypes[id]
	if !ok {
		return 0, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
	}
	if tt.QuantitySold+qty > tt.QuantityAvailable {
		return 0, fmt.Errorf("requested %d, only %d remaining: %w", qty, tt.Remaining(), models.ErrInsufficientStock)
	}
	tt.QuantitySold += qty
	return qty, nil
}

func (v ticketTypeView) ReleaseSold(ctx context.Context, id, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}
	st, release := v.acquire()
	defer release()
	tt, ok := st.ticketTypes[id]
	if !ok {
		return 0, fmt.Errorf("ticket type with id %d: %w", id, models.ErrTicketTypeNotFound)
	}
	released := qty
	if released > tt.QuantitySold {
		released = tt.QuantitySold
	}
	tt.QuantitySold -= released
	return released, nil
}

type discountView struct{ view }

func (v discountView) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	st, release := v.acquire()
	defer release()
	d, ok := st.discounts[models.CanonicalCode(code)]
	if !ok {
		return nil, fmt.Errorf("discount %s: %w", models.CanonicalCode(code), models.ErrDiscountNotFound)
	}
	return cloneDiscount(d), nil
}

type eventView struct{ view }

func (v eventView) GetEventByID(ctx context.Context, id int) (*models.Event, error) {
	st, release := v.acquire()
	defer release()
	e, ok := st.events[id]
	if !ok {
		return nil, fmt.Errorf("event with id %d: %w", id, models.ErrEventNotFound)
	}
	c := *e
	return &c, nil
}

type userView struct{ view }

func (v userView) GetByID(ctx context.Context, id int) (*models.User, error) {
	st, release := v.acquire()
	defer release()
	u, ok := st.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %d: %w", id, models.ErrUserNotFound)
	}
	c := *u
	return &c, nil
}

type orderView struct{ view }

func (v orderView) Create(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	st, release := v.acquire()
	defer release()
	if _, exists := st.orderNumbers[order.OrderNumber]; exists {
		return fmt.Errorf("order number %s: %w", order.OrderNumber, models.ErrDuplicateOrderNumber)
	}

	order.ID = st.nextID()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = st.nextID()
		order.Items[i].OrderID = order.ID
	}

	stored := order.Clone()
	stored.Tickets = nil
	stored.Payments = nil
	st.orders[order.ID] = stored
	st.orderNumbers[order.OrderNumber] = order.ID
	return nil
}

func (v orderView) GetByID(ctx context.Context, id int) (*models.Order, error) {
	st, release := v.acquire()
	defer release()
	o, ok := st.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
	}
	return o.Clone(), nil
}

func (v orderView) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	st, release := v.acquire()
	defer release()
	id, ok := st.orderNumbers[orderNumber]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderNumber, models.ErrOrderNotFound)
	}
	return st.orders[id].Clone(), nil
}

// GetForUpdate needs no extra locking: units of work are already serialized
func (v orderView) GetForUpdate(ctx context.Context, id int) (*models.Order, error) {
	return v.GetByID(ctx, id)
}

// FindPendingByCartKey relies on units of work being serialized for the cart lock
func (v orderView) FindPendingByCartKey(ctx context.Context, cartKey string, now time.Time) (*models.Order, error) {
	st, release := v.acquire()
	defer release()
	var found *models.Order
	for _, o := range st.orders {
		if o.CartKey != cartKey || !o.IsPending() || o.PaymentDeadline.Before(now) {
			continue
		}
		if found == nil || o.ID > found.ID {
			found = o
		}
	}
	if found == nil {
		return nil, fmt.Errorf("pending order for cart %s: %w", cartKey, models.ErrOrderNotFound)
	}
	return found.Clone(), nil
}

func (v orderView) UpdateStatus(ctx context.Context, id int, status models.OrderStatus, notes string) error {
	st, release := v.acquire()
	defer release()
	o, ok := st.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
	}
	o.Status = status
	o.Notes = notes
	o.UpdatedAt = time.Now()
	return nil
}

func (v orderView) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	st, release := v.acquire()
	defer release()
	var out []*models.Order
	for _, o := range st.orders {
		if o.IsOverdue(now) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDeadline.Equal(out[j].PaymentDeadline) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaymentDeadline.Before(out[j].PaymentDeadline)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ticketView struct{ view }

func (v ticketView) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	st, release := v.acquire()
	defer release()
	if _, ok := st.orders[ticket.OrderID]; !ok {
		return fmt.Errorf("order %d: %w", ticket.OrderID, models.ErrOrderNotFound)
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketActive
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.ID = st.nextID()
	st.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (v ticketView) GetTicketsByOrder(ctx context.Context, orderID int) ([]*models.Ticket, error) {
	st, release := v.acquire()
	defer release()
	var out []*models.Ticket
	for _, t := range st.tickets {
		if t.OrderID == orderID {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v ticketView) CancelTicketsByOrder(ctx context.Context, orderID int) (int, error) {
	st, release := v.acquire()
	defer release()
	cancelled := 0
	for _, t := range st.tickets {
		if t.OrderID == orderID && t.IsActive() {
			t.Status = models.TicketCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

type attendeeView struct{ view }

func (v attendeeView) Create(ctx context.Context, info models.AttendeeInfo, orderID int) (*models.Attendee, error) {
	st, release := v.acquire()
	defer release()
	a := &models.Attendee{
		ID:        st.nextID(),
		OrderID:   orderID,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
	}
	st.attendees[a.ID] = cloneAttendee(a)
	return a, nil
}

func (v attendeeView) FindUnassigned(ctx context.Context, orderID int) ([]*models.Attendee, error) {
	st, release := v.acquire()
	defer release()
	var out []*models.Attendee
	for _, a := range st.attendees {
		if a.OrderID == orderID && !a.IsAssigned() {
			out = append(out, cloneAttendee(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v attendeeView) AssignTicket(ctx context.Context, attendeeID, ticketID int) error {
	st, release := v.acquire()
	defer release()
	a, ok := st.attendees[attendeeID]
	if !ok {
		return fmt.Errorf("attendee %d not found: %w", attendeeID, models.ErrInvalidInput)
	}
	t, ok := st.tickets[ticketID]
	if !ok {
		return fmt.Errorf("ticket %d not found: %w", ticketID, models.ErrInvalidInput)
	}
	tid, aid := ticketID, attendeeID
	a.TicketID = &tid
	t.AttendeeID = &aid
	return nil
}

type paymentView struct{ view }

func (v paymentView) Create(ctx context.Context, payment *models.Payment) error {
	st, release := v.acquire()
	defer release()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	payment.ID = st.nextID()
	pc := *payment
	st.payments[payment.ID] = &pc
	return nil
}

func (v paymentView) GetByOrder(ctx context.Context, orderID int) ([]*models.Payment, error) {
	st, release := v.acquire()
	defer release()
	var out []*models.Payment
	for _, p := range st.payments {
		if p.OrderID == orderID {
			pc := *p
			out = append(out, &pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repositories.UnitOfWork = (*Store)(nil)
