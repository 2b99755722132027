package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

func TestCartValidator_ValidCartUnchanged(t *testing.T) {
	f := newFixture(t)
	tt := f.addTicketType("General", "45.00", 100, func(tt *models.TicketType) { tt.MaxQuantity = 6 })
	cart := cartWith(session("s1"), line(tt, 2))

	result, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.False(t, result.HasChanges)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.True(t, cart.Subtotal.Equal(dec("90")))
	assert.True(t, cart.Total.Equal(dec("90")))
	assert.Same(t, cart, result.Cart)
}

func TestCartValidator_PriceChanges(t *testing.T) {
	tests := []struct {
		name     string
		newPrice string
		code     string
		subtotal string
	}{
		{name: "price increased", newPrice: "50.00", code: models.CodePriceIncreased, subtotal: "100"},
		{name: "price decreased", newPrice: "40.00", code: models.CodePriceDecreased, subtotal: "80"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tt := f.addTicketType("General", "45.00", 100, func(tt *models.TicketType) { tt.MaxQuantity = 6 })
			cart := cartWith(session("s1"), line(tt, 2))

			tt.Price = dec(tc.newPrice)
			f.store.PutTicketType(*tt)

			result, err := f.validator.Validate(f.ctx, cart)
			require.NoError(t, err)

			assert.True(t, result.IsValid)
			assert.True(t, result.HasChanges)
			require.Len(t, result.Warnings, 1)
			assert.Equal(t, tc.code, result.Warnings[0].Code)
			assert.True(t, result.Warnings[0].OldPrice.Equal(dec("45")))
			assert.True(t, result.Warnings[0].NewPrice.Equal(dec(tc.newPrice)))
			assert.True(t, cart.Items[0].UnitPrice.Equal(dec(tc.newPrice)))
			assert.True(t, cart.Subtotal.Equal(dec(tc.subtotal)))
			assertTotalsBalance(t, cart)
		})
	}
}

func TestCartValidator_QuantityLimits(t *testing.T) {
	tests := []struct {
		name        string
		qty         int
		wantQty     int
		wantValid   bool
		wantError   string
		wantWarning string
	}{
		{name: "exactly max", qty: 6, wantQty: 6, wantValid: true},
		{name: "exactly min", qty: 2, wantQty: 2, wantValid: true},
		{name: "one above max", qty: 7, wantQty: 6, wantValid: true, wantWarning: models.CodeQuantityReducedLimit},
		{name: "well above max", qty: 10, wantQty: 6, wantValid: true, wantWarning: models.CodeQuantityReducedLimit},
		{name: "one below min", qty: 1, wantQty: 1, wantValid: false, wantError: models.CodeQuantityBelowMinimum},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tt := f.addTicketType("General", "45.00", 100, func(tt *models.TicketType) {
				tt.MinQuantity = 2
				tt.MaxQuantity = 6
			})
			cart := cartWith(session("s1"), line(tt, tc.qty))

			result, err := f.validator.Validate(f.ctx, cart)
			require.NoError(t, err)

			assert.Equal(t, tc.wantValid, result.IsValid)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, tc.wantQty, cart.Items[0].Quantity)

			if tc.wantError != "" {
				require.Len(t, result.Errors, 1)
				assert.Equal(t, tc.wantError, result.Errors[0].Code)
			} else {
				assert.Empty(t, result.Errors)
			}
			if tc.wantWarning != "" {
				require.Len(t, result.Warnings, 1)
				assert.Equal(t, tc.wantWarning, result.Warnings[0].Code)
				assert.Equal(t, tc.qty, result.Warnings[0].OldQuantity)
				assert.Equal(t, 6, result.Warnings[0].NewQuantity)
			} else {
				assert.Empty(t, result.Warnings)
			}
			assertTotalsBalance(t, cart)
		})
	}
}

func TestCartValidator_Stock(t *testing.T) {
	tests := []struct {
		name        string
		available   int
		sold        int
		qty         int
		wantRemoved bool
		wantQty     int
		wantError   string
		wantWarning string
	}{
		{name: "sold out", available: 10, sold: 10, qty: 2, wantRemoved: true, wantError: models.CodeTicketOutOfStock},
		{name: "more than remaining", available: 10, sold: 7, qty: 4, wantQty: 3, wantWarning: models.CodeQuantityReducedStock},
		{name: "low stock five left", available: 10, sold: 5, qty: 2, wantQty: 2, wantWarning: models.CodeLowStock},
		{name: "low stock one left", available: 10, sold: 9, qty: 1, wantQty: 1, wantWarning: models.CodeLowStock},
		{name: "six left is not low", available: 10, sold: 4, qty: 2, wantQty: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tt := f.addTicketType("General", "20.00", tc.available, func(tt *models.TicketType) { tt.QuantitySold = tc.sold })
			keep := f.addTicketType("Parking", "5.00", 100)
			cart := cartWith(session("s1"), line(tt, tc.qty), line(keep, 1))

			result, err := f.validator.Validate(f.ctx, cart)
			require.NoError(t, err)

			if tc.wantRemoved {
				assert.False(t, result.IsValid)
				assert.True(t, result.HasChanges)
				assert.True(t, result.HasError(tc.wantError))
				require.Len(t, cart.Items, 1)
				assert.Equal(t, keep.ID, cart.Items[0].TicketTypeID)
				return
			}

			assert.True(t, result.IsValid)
			require.Len(t, cart.Items, 2)
			assert.Equal(t, tc.wantQty, cart.Items[0].Quantity)
			assert.Equal(t, tc.available-tc.sold, cart.Items[0].AvailableQuantity)
			if tc.wantWarning != "" {
				require.Len(t, result.Warnings, 1)
				assert.Equal(t, tc.wantWarning, result.Warnings[0].Code)
			} else {
				assert.Empty(t, result.Warnings)
			}
			if tc.wantWarning == models.CodeQuantityReducedStock {
				assert.Equal(t, tc.qty, result.Warnings[0].OldQuantity)
				assert.Equal(t, tc.wantQty, result.Warnings[0].NewQuantity)
				assert.True(t, result.HasChanges)
			}
		})
	}
}

func TestCartValidator_NotOnSale(t *testing.T) {
	tests := []struct {
		name   string
		modify func(tt *models.TicketType, now time.Time)
	}{
		{name: "inactive", modify: func(tt *models.TicketType, now time.Time) { tt.IsActive = false }},
		{name: "sale not started", modify: func(tt *models.TicketType, now time.Time) {
			start := now.Add(time.Hour)
			tt.SaleStart = &start
		}},
		{name: "sale ended", modify: func(tt *models.TicketType, now time.Time) {
			end := now.Add(-time.Hour)
			tt.SaleEnd = &end
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tt := f.addTicketType("General", "20.00", 100)
			cart := cartWith(session("s1"), line(tt, 1))

			tc.modify(tt, f.now)
			f.store.PutTicketType(*tt)

			result, err := f.validator.Validate(f.ctx, cart)
			require.NoError(t, err)

			assert.False(t, result.IsValid)
			assert.True(t, result.HasChanges)
			assert.True(t, result.HasError(models.CodeTicketNotOnSale))
			assert.True(t, result.HasError(models.CodeCartEmpty))
			assert.Empty(t, cart.Items)
			assert.True(t, cart.Total.IsZero())
		})
	}
}

func TestCartValidator_SaleWindowBoundsAreOpen(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(-time.Hour)
	end := f.now.Add(time.Hour)
	tt := f.addTicketType("General", "20.00", 100, func(tt *models.TicketType) {
		tt.SaleStart = &start
		tt.SaleEnd = &end
	})
	cart := cartWith(session("s1"), line(tt, 1))

	result, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestCartValidator_TicketNotFound(t *testing.T) {
	f := newFixture(t)
	tt := f.addTicketType("General", "20.00", 100)
	cart := cartWith(session("s1"), line(tt, 1))
	cart.Items[0].TicketTypeID = 9999

	result, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.True(t, result.HasChanges)
	assert.Equal(t, models.CodeTicketNotFound, result.Errors[0].Code)
	assert.True(t, result.HasError(models.CodeCartEmpty))
	assert.Empty(t, cart.Items)
}

type failingTicketTypes struct {
	repositories.TicketTypeStore
	failID int
}

func (f failingTicketTypes) GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error) {
	if id == f.failID {
		return nil, errors.New("connection reset")
	}
	return f.TicketTypeStore.GetTicketTypeByID(ctx, id)
}

func TestCartValidator_LookupFailureRemovesItem(t *testing.T) {
	f := newFixture(t)
	broken := f.addTicketType("General", "20.00", 100)
	ok := f.addTicketType("VIP", "80.00", 100)
	cart := cartWith(session("s1"), line(broken, 1), line(ok, 1))

	validator := NewCartValidator(failingTicketTypes{f.store.TicketTypes(), broken.ID}, 5, decimal.Zero, zerolog.Nop())
	validator.now = f.clock

	result, err := validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.CodeValidationError, result.Errors[0].Code)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, ok.ID, cart.Items[0].TicketTypeID)
	assert.True(t, cart.Subtotal.Equal(dec("80")))
}

func TestCartValidator_MixedEvents(t *testing.T) {
	f := newFixture(t)
	other := f.store.PutEvent(models.Event{Title: "Winter Gala", Status: models.StatusPublished})
	a := f.addTicketType("General", "20.00", 100)
	b := f.addTicketType("Gala", "60.00", 100, func(tt *models.TicketType) { tt.EventID = other.ID })
	cart := cartWith(session("s1"), line(a, 1), line(b, 1))

	result, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.CodeMixedEvents, result.Errors[0].Code)
	assert.Len(t, cart.Items, 2)
}

func TestCartValidator_EmptyCart(t *testing.T) {
	f := newFixture(t)
	cart := models.NewCart(session("s1"))

	result, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.False(t, result.HasChanges)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.CodeCartEmpty, result.Errors[0].Code)
}

func TestCartValidator_NilCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.validator.Validate(f.ctx, nil)
	assert.ErrorIs(t, err, models.ErrNilCart)
}

func TestCartValidator_FeesKeepTotalsConsistent(t *testing.T) {
	f := newFixtureWithFee(t, dec("2.50"))
	tt := f.addTicketType("General", "45.00", 100)
	cart := cartWith(session("s1"), line(tt, 2))
	cart.Discount = dec("10")

	_, err := f.validator.Validate(f.ctx, cart)
	require.NoError(t, err)

	assert.True(t, cart.Fees.Equal(dec("5")))
	assert.True(t, cart.Total.Equal(dec("85")))
	assertTotalsBalance(t, cart)
}
