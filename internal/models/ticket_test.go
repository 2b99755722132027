package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTicketType_Validate(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name       string
		ticketType TicketType
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "valid ticket type",
			ticketType: TicketType{Name: "General", Price: decimal.NewFromInt(45), QuantityAvailable: 100, MinQuantity: 1, MaxQuantity: 10},
			wantErr:    false,
		},
		{
			name:       "missing name",
			ticketType: TicketType{Name: " ", Price: decimal.NewFromInt(45)},
			wantErr:    true,
			errMsg:     "ticket type name is required",
		},
		{
			name:       "negative price",
			ticketType: TicketType{Name: "General", Price: decimal.NewFromInt(-1)},
			wantErr:    true,
			errMsg:     "ticket price cannot be negative",
		},
		{
			name:       "negative quantity",
			ticketType: TicketType{Name: "General", QuantityAvailable: -1},
			wantErr:    true,
			errMsg:     "ticket quantity cannot be negative",
		},
		{
			name:       "min above max",
			ticketType: TicketType{Name: "General", MinQuantity: 5, MaxQuantity: 2},
			wantErr:    true,
			errMsg:     "minimum quantity cannot exceed maximum quantity",
		},
		{
			name:       "unlimited max",
			ticketType: TicketType{Name: "General", MinQuantity: 5, MaxQuantity: 0},
			wantErr:    false,
		},
		{
			name:       "sale window reversed",
			ticketType: TicketType{Name: "General", SaleStart: &end, SaleEnd: &start},
			wantErr:    true,
			errMsg:     "sale start date must be before sale end date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticketType.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TicketType.Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err.Error() != tt.errMsg {
				t.Errorf("TicketType.Validate() error = %v, want %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestTicketType_Availability(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name       string
		ticketType TicketType
		remaining  int
		saleOpen   bool
		onSale     bool
	}{
		{
			name:       "open with stock",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, QuantitySold: 4},
			remaining:  6, saleOpen: true, onSale: true,
		},
		{
			name:       "sold out",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, QuantitySold: 10},
			remaining:  0, saleOpen: true, onSale: false,
		},
		{
			name:       "oversold counter",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, QuantitySold: 12},
			remaining:  0, saleOpen: true, onSale: false,
		},
		{
			name:       "inactive",
			ticketType: TicketType{IsActive: false, QuantityAvailable: 10},
			remaining:  10, saleOpen: false, onSale: false,
		},
		{
			name:       "before sale start",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, SaleStart: &after},
			remaining:  10, saleOpen: false, onSale: false,
		},
		{
			name:       "after sale end",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, SaleEnd: &before},
			remaining:  10, saleOpen: false, onSale: false,
		},
		{
			name:       "inside window",
			ticketType: TicketType{IsActive: true, QuantityAvailable: 10, SaleStart: &before, SaleEnd: &after},
			remaining:  10, saleOpen: true, onSale: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ticketType.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
			if got := tt.ticketType.IsSaleOpen(now); got != tt.saleOpen {
				t.Errorf("IsSaleOpen() = %v, want %v", got, tt.saleOpen)
			}
			if got := tt.ticketType.IsOnSale(now); got != tt.onSale {
				t.Errorf("IsOnSale() = %v, want %v", got, tt.onSale)
			}
		})
	}
}

func TestTicket_StatusChecks(t *testing.T) {
	attendee := 3
	active := &Ticket{Status: TicketActive, AttendeeID: &attendee}
	cancelled := &Ticket{Status: TicketCancelled}

	if !active.IsActive() || active.IsCancelled() || !active.HasAttendee() {
		t.Error("active ticket status checks are wrong")
	}
	if cancelled.IsActive() || !cancelled.IsCancelled() || cancelled.HasAttendee() {
		t.Error("cancelled ticket status checks are wrong")
	}
}
