package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketing-checkout/internal/events"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
	"ticketing-checkout/internal/repositories/memory"
)

// mockPublisher records published order events
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evt events.OrderEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *mockPublisher) published(eventType events.EventType) int {
	count := 0
	for _, call := range m.Calls {
		if evt, ok := call.Arguments.Get(1).(events.OrderEvent); ok && evt.Type == eventType {
			count++
		}
	}
	return count
}

// mockGateway lets tests control refunds
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) BuildSuccessRecord(order *models.Order, confirmation models.PaymentConfirmation) *models.Payment {
	args := m.Called(order, confirmation)
	return args.Get(0).(*models.Payment)
}

func (m *mockGateway) Refund(ctx context.Context, order *models.Order) (*models.Payment, error) {
	args := m.Called(ctx, order)
	if p, ok := args.Get(0).(*models.Payment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	now  time.Time
	fee  decimal.Decimal
	ctx  context.Context
	t    *testing.T
	user *models.User

	store      *memory.Store
	carts      *memory.CartStore
	event      *models.Event
	validator  *CartValidator
	promotions *PromotionService
	cartSvc    *CartService
	checkout   *CheckoutService
	lifecycle  *OrderLifecycleService
	gateway    *ManualPaymentGateway
	issuer     *TicketIssuer
	publisher  *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithFee(t, decimal.Zero)
}

func newFixtureWithFee(t *testing.T, fee decimal.Decimal) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	f := &fixture{
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		fee:   fee,
		ctx:   context.Background(),
		t:     t,
		store: memory.NewStore(),
		carts: memory.NewCartStore(),
	}

	f.event = f.store.PutEvent(models.Event{
		Title:     "Summer Festival",
		StartDate: f.now.Add(30 * 24 * time.Hour),
		Status:    models.StatusPublished,
	})
	f.user = f.store.PutUser(models.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"})

	f.validator = NewCartValidator(f.store.TicketTypes(), 5, fee, logger)
	f.validator.now = f.clock

	f.promotions = NewPromotionService(f.store.Discounts(), fee, logger)
	f.promotions.now = f.clock

	f.cartSvc = NewCartService(f.carts, f.store.TicketTypes(), f.validator, f.promotions, logger)
	f.cartSvc.now = f.clock

	f.publisher = &mockPublisher{}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	f.checkout = NewCheckoutService(CheckoutDeps{
		Carts:      f.carts,
		Orders:     f.store.Orders(),
		UnitOfWork: f.store,
		Events:     f.store.Events(),
		Users:      f.store.Users(),
		Validator:  f.validator,
		Promotions: f.promotions,
		Publisher:  f.publisher,
	}, 30*time.Minute, logger)
	f.checkout.now = f.clock

	f.gateway = NewManualPaymentGateway("stripe")
	f.gateway.now = f.clock
	f.issuer = NewTicketIssuer("qr-secret")

	f.lifecycle = NewOrderLifecycleService(LifecycleDeps{
		UnitOfWork: f.store,
		Orders:     f.store.Orders(),
		Tickets:    f.store.Tickets(),
		Payments:   f.store.Payments(),
		Carts:      f.carts,
		Gateway:    f.gateway,
		Issuer:     f.issuer,
		Publisher:  f.publisher,
	}, logger)
	f.lifecycle.now = f.clock

	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

// addTicketType stores an active, on-sale ticket type for the fixture event
func (f *fixture) addTicketType(name, price string, available int, opts ...func(tt *models.TicketType)) *models.TicketType {
	tt := models.TicketType{
		EventID:           f.event.ID,
		EventTitle:        f.event.Title,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		QuantityAvailable: available,
		IsActive:          true,
	}
	for _, opt := range opts {
		opt(&tt)
	}
	return f.store.PutTicketType(tt)
}

func (f *fixture) ticketType(id int) *models.TicketType {
	tt, err := f.store.TicketTypes().GetTicketTypeByID(f.ctx, id)
	require.NoError(f.t, err)
	return tt
}

// cartWith builds a cart whose lines snapshot the given ticket types
func cartWith(id models.CartIdentity, lines ...cartLine) *models.Cart {
	cart := models.NewCart(id)
	for _, line := range lines {
		item := models.CartItem{TicketTypeID: line.tt.ID, Quantity: line.qty}
		item.ApplySnapshot(line.tt)
		cart.Items = append(cart.Items, item)
	}
	cart.RecalculateTotals(decimal.Zero)
	return cart
}

type cartLine struct {
	tt  *models.TicketType
	qty int
}

func line(tt *models.TicketType, qty int) cartLine {
	return cartLine{tt: tt, qty: qty}
}

func session(id string) models.CartIdentity {
	return models.CartIdentity{SessionID: id}
}

var defaultCheckout = models.CheckoutRequest{
	BillingEmail: "buyer@example.com",
	BillingName:  "Grace Hopper",
}

// placeOrder fills a session cart and checks it out
func (f *fixture) placeOrder(sessionID string, tt *models.TicketType, qty int, attendees ...models.AttendeeInfo) *models.Order {
	f.t.Helper()
	_, err := f.cartSvc.AddItem(f.ctx, session(sessionID), tt.ID, qty)
	require.NoError(f.t, err)

	req := defaultCheckout
	req.Attendees = attendees
	order, err := f.checkout.CreateOrderFromCart(f.ctx, session(sessionID), req)
	require.NoError(f.t, err)
	return order
}

func requireCartError(t *testing.T, err error, code string) *models.CartError {
	t.Helper()
	var cartErr *models.CartError
	require.ErrorAs(t, err, &cartErr)
	assert.Equal(t, code, cartErr.Code)
	return cartErr
}

func assertTotalsBalance(t *testing.T, cart *models.Cart) {
	t.Helper()
	expected := cart.Subtotal.Sub(cart.Discount).Add(cart.Fees)
	assert.True(t, cart.Total.Equal(expected), "total %s != subtotal %s - discount %s + fees %s",
		cart.Total, cart.Subtotal, cart.Discount, cart.Fees)
	assert.False(t, cart.Total.IsNegative())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// uowFunc adapts a function to repositories.UnitOfWork
type uowFunc func(ctx context.Context, fn func(repos repositories.Repositories) error) error

func (f uowFunc) Do(ctx context.Context, fn func(repos repositories.Repositories) error) error {
	return f(ctx, fn)
}
