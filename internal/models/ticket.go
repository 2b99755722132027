package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus represents the status of a ticket
type TicketStatus string

const (
	TicketActive    TicketStatus = "ACTIVE"
	TicketCancelled TicketStatus = "CANCELLED"
)

// TicketType represents a type of ticket for an event
type TicketType struct {
	ID                int             `json:"id" db:"id"`
	EventID           int             `json:"event_id" db:"event_id"`
	EventTitle        string          `json:"event_title" db:"event_title"`
	CategoryID        int             `json:"category_id" db:"category_id"`
	Name              string          `json:"name" db:"name"`
	Price             decimal.Decimal `json:"price" db:"price"`
	QuantityAvailable int             `json:"quantity_available" db:"quantity_available"`
	QuantitySold      int             `json:"quantity_sold" db:"quantity_sold"`
	MinQuantity       int             `json:"min_quantity" db:"min_quantity"`
	MaxQuantity       int             `json:"max_quantity" db:"max_quantity"` // 0 means no limit
	SaleStart         *time.Time      `json:"sale_start,omitempty" db:"sale_start"`
	SaleEnd           *time.Time      `json:"sale_end,omitempty" db:"sale_end"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// Ticket represents an individual issued ticket
type Ticket struct {
	ID           int          `json:"id" db:"id"`
	OrderID      int          `json:"order_id" db:"order_id"`
	TicketTypeID int          `json:"ticket_type_id" db:"ticket_type_id"`
	AttendeeID   *int         `json:"attendee_id,omitempty" db:"attendee_id"`
	Code         string       `json:"code" db:"code"`
	QRPayload    string       `json:"qr_payload" db:"qr_payload"`
	Status       TicketStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Validate validates the ticket type data
func (tt *TicketType) Validate() error {
	if strings.TrimSpace(tt.Name) == "" {
		return errors.New("ticket type name is required")
	}

	if tt.Price.IsNegative() {
		return errors.New("ticket price cannot be negative")
	}

	if tt.QuantityAvailable < 0 {
		return errors.New("ticket quantity cannot be negative")
	}

	if tt.MinQuantity < 0 || tt.MaxQuantity < 0 {
		return errors.New("ticket quantity limits cannot be negative")
	}

	if tt.MaxQuantity > 0 && tt.MinQuantity > tt.MaxQuantity {
		return errors.New("minimum quantity cannot exceed maximum quantity")
	}

	if tt.SaleStart != nil && tt.SaleEnd != nil && tt.SaleStart.After(*tt.SaleEnd) {
		return errors.New("sale start date must be before sale end date")
	}

	return nil
}

// Remaining returns the number of tickets still available
func (tt *TicketType) Remaining() int {
	remaining := tt.QuantityAvailable - tt.QuantitySold
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsSoldOut returns true if all tickets are sold
func (tt *TicketType) IsSoldOut() bool {
	return tt.Remaining() == 0
}

// InSaleWindow returns true if now falls inside the sale window. Nil bounds are open.
func (tt *TicketType) InSaleWindow(now time.Time) bool {
	if tt.SaleStart != nil && now.Before(*tt.SaleStart) {
		return false
	}
	if tt.SaleEnd != nil && now.After(*tt.SaleEnd) {
		return false
	}
	return true
}

// IsSaleOpen returns true if the type is active and inside its sale window, ignoring stock
func (tt *TicketType) IsSaleOpen(now time.Time) bool {
	return tt.IsActive && tt.InSaleWindow(now)
}

// IsOnSale returns true if the ticket type can be bought right now
func (tt *TicketType) IsOnSale(now time.Time) bool {
	return tt.IsSaleOpen(now) && tt.Remaining() > 0
}

// IsActive returns true if the ticket can be used
func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}

// IsCancelled returns true if the ticket was cancelled
func (t *Ticket) IsCancelled() bool {
	return t.Status == TicketCancelled
}

// HasAttendee returns true if a named attendee was assigned
func (t *Ticket) HasAttendee() bool {
	return t.AttendeeID != nil
}
