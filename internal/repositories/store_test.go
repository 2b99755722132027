package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Database tests require TEST_DATABASE_URL")
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)

	migrator, err := database.NewMigrator(db)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	_, err = db.Exec(`TRUNCATE payments, tickets, attendees, order_items, orders, discounts, ticket_types, events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

func seedTicketType(t *testing.T, store *Store, available int) *models.TicketType {
	ctx := context.Background()
	event := &models.Event{Title: "Jazz Night", StartDate: time.Now().Add(72 * time.Hour), Status: models.StatusPublished}
	require.NoError(t, store.Events.Create(ctx, event))

	tt := &models.TicketType{
		EventID:           event.ID,
		Name:              "General Admission",
		Price:             decimal.NewFromInt(25),
		QuantityAvailable: available,
		IsActive:          true,
	}
	require.NoError(t, store.Tickets.CreateTicketType(ctx, tt))
	return tt
}

func TestTicketRepository_IncrementSold(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()

	tests := []struct {
		name    string
		qty     int
		wantErr error
		sold    int
	}{
		{name: "within stock", qty: 4, sold: 4},
		{name: "exactly remaining", qty: 6, sold: 10},
		{name: "over stock", qty: 1, wantErr: models.ErrInsufficientStock, sold: 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Tickets.IncrementSold(ctx, tt.ID, tc.qty)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr))
			} else {
				assert.NoError(t, err)
			}

			got, err := store.Tickets.GetTicketTypeByID(ctx, tt.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.sold, got.QuantitySold)
		})
	}
}

func TestTicketRepository_ReleaseSoldFloorsAtZero(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()

	_, err := store.Tickets.IncrementSold(ctx, tt.ID, 2)
	require.NoError(t, err)

	released, err := store.Tickets.ReleaseSold(ctx, tt.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	got, err := store.Tickets.GetTicketTypeByID(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
}

func TestStore_DoRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Do(ctx, func(repos Repositories) error {
		if _, err := repos.TicketTypes.IncrementSold(ctx, tt.ID, 3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Tickets.GetTicketTypeByID(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantitySold)
}

func TestOrderRepository_CreateDuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()

	newOrder := func() *models.Order {
		return &models.Order{
			OrderNumber:     "ORD-20240101093000-123456",
			EventID:         tt.EventID,
			Status:          models.OrderPending,
			Subtotal:        decimal.NewFromInt(25),
			TotalAmount:     decimal.NewFromInt(25),
			BillingEmail:    "buyer@example.com",
			BillingName:     "Buyer",
			PaymentDeadline: time.Now().Add(30 * time.Minute),
			Items: []models.OrderItem{{
				TicketTypeID:   tt.ID,
				TicketTypeName: tt.Name,
				Quantity:       1,
				UnitPrice:      decimal.NewFromInt(25),
				TotalPrice:     decimal.NewFromInt(25),
			}},
		}
	}

	first := newOrder()
	require.NoError(t, store.Orders.Create(ctx, first))
	assert.NotZero(t, first.ID)

	err := store.Orders.Create(ctx, newOrder())
	assert.ErrorIs(t, err, models.ErrDuplicateOrderNumber)

	got, err := store.Orders.GetByOrderNumber(ctx, first.OrderNumber)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(25)))
}

func TestDiscountRepository_FindByCodeCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()

	d := &models.Discount{
		Code:          "summer10",
		Type:          models.DiscountPercentage,
		PercentOff:    decimal.NewFromInt(10),
		TicketTypeIDs: []int{tt.ID},
	}
	require.NoError(t, store.Discounts.Create(ctx, d))

	got, err := store.Discounts.FindByCode(ctx, " Summer10 ")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", got.Code)
	assert.Equal(t, []int{tt.ID}, got.TicketTypeIDs)

	_, err = store.Discounts.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, models.ErrDiscountNotFound)
}

func TestOrderRepository_FindPendingByCartKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	tt := seedTicketType(t, store, 10)
	ctx := context.Background()
	now := time.Now()

	create := func(num, cartKey string, status models.OrderStatus, deadline time.Time) {
		require.NoError(t, store.Orders.Create(ctx, &models.Order{
			OrderNumber:     num,
			EventID:         tt.EventID,
			CartKey:         cartKey,
			Status:          status,
			TotalAmount:     decimal.NewFromInt(25),
			BillingEmail:    "buyer@example.com",
			BillingName:     "Buyer",
			PaymentDeadline: deadline,
			Items: []models.OrderItem{{
				TicketTypeID:   tt.ID,
				TicketTypeName: tt.Name,
				Quantity:       1,
				UnitPrice:      decimal.NewFromInt(25),
				TotalPrice:     decimal.NewFromInt(25),
			}},
		}))
	}
	create("ORD-20240101093000-000001", "session_a", models.OrderPending, now.Add(-time.Minute))
	create("ORD-20240101093000-000002", "session_a", models.OrderPaid, now.Add(time.Hour))
	create("ORD-20240101093000-000003", "session_a", models.OrderPending, now.Add(time.Hour))

	err := store.Do(ctx, func(repos Repositories) error {
		order, err := repos.Orders.FindPendingByCartKey(ctx, "session_a", now)
		require.NoError(t, err)
		assert.Equal(t, "ORD-20240101093000-000003", order.OrderNumber)
		require.Len(t, order.Items, 1)
		assert.Equal(t, tt.ID, order.Items[0].TicketTypeID)

		_, err = repos.Orders.FindPendingByCartKey(ctx, "session_b", now)
		assert.ErrorIs(t, err, models.ErrOrderNotFound)
		return nil
	})
	require.NoError(t, err)
}
