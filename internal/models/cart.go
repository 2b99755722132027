package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartIdentity identifies the owner of a cart. A logged-in user wins over the session.
type CartIdentity struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    int    `json:"user_id,omitempty"`
}

// Key returns the store key for the identity
func (id CartIdentity) Key() (string, error) {
	if id.UserID > 0 {
		return fmt.Sprintf("user_%d", id.UserID), nil
	}
	if strings.TrimSpace(id.SessionID) != "" {
		return "session_" + id.SessionID, nil
	}
	return "", ErrInvalidCartIdentity
}

// Canonical drops the session when a user is present so exactly one identity is set
func (id CartIdentity) Canonical() CartIdentity {
	if id.UserID > 0 {
		return CartIdentity{UserID: id.UserID}
	}
	return CartIdentity{SessionID: id.SessionID}
}

// Cart represents a shopping cart
type Cart struct {
	SessionID string          `json:"session_id,omitempty"`
	UserID    int             `json:"user_id,omitempty"`
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Fees      decimal.Decimal `json:"fees"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	PromoCode string          `json:"promo_code,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartItem represents an item in the shopping cart. Everything except
// TicketTypeID and Quantity is a snapshot refreshed by the validator.
type CartItem struct {
	TicketTypeID      int             `json:"ticket_type_id"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	EventID           int             `json:"event_id"`
	EventTitle        string          `json:"event_title"`
	CategoryID        int             `json:"category_id,omitempty"`
	AvailableQuantity int             `json:"available_quantity"`
	MinQuantity       int             `json:"min_quantity"`
	MaxQuantity       int             `json:"max_quantity"`
	Quantity          int             `json:"quantity"`
	TotalPrice        decimal.Decimal `json:"total_price"`
}

// NewCart creates an empty cart for the identity
func NewCart(id CartIdentity) *Cart {
	id = id.Canonical()
	return &Cart{
		SessionID: id.SessionID,
		UserID:    id.UserID,
		Items:     []CartItem{},
		Subtotal:  decimal.Zero,
		Fees:      decimal.Zero,
		Discount:  decimal.Zero,
		Total:     decimal.Zero,
		UpdatedAt: time.Now(),
	}
}

// Identity returns the cart owner
func (c *Cart) Identity() CartIdentity {
	return CartIdentity{SessionID: c.SessionID, UserID: c.UserID}
}

// IsEmpty returns true if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the index of the line for a ticket type, or -1
func (c *Cart) FindItem(ticketTypeID int) int {
	for i := range c.Items {
		if c.Items[i].TicketTypeID == ticketTypeID {
			return i
		}
	}
	return -1
}

// RemoveItem drops the line for a ticket type and reports whether it existed
func (c *Cart) RemoveItem(ticketTypeID int) bool {
	idx := c.FindItem(ticketTypeID)
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// TicketCount returns the number of tickets across all lines
func (c *Cart) TicketCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// EventIDs returns the distinct events referenced by the cart in item order
func (c *Cart) EventIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, item := range c.Items {
		if !seen[item.EventID] {
			seen[item.EventID] = true
			ids = append(ids, item.EventID)
		}
	}
	return ids
}

// RecalculateTotals recomputes line totals, subtotal, fees and total.
// feePerTicket is charged per unit. The discount is capped at the subtotal.
func (c *Cart) RecalculateTotals(feePerTicket decimal.Decimal) {
	subtotal := decimal.Zero
	for i := range c.Items {
		c.Items[i].RecalculateTotal()
		subtotal = subtotal.Add(c.Items[i].TotalPrice)
	}
	c.Subtotal = subtotal.Round(2)
	c.Fees = feePerTicket.Mul(decimal.NewFromInt(int64(c.TicketCount()))).Round(2)

	if c.Discount.IsNegative() {
		c.Discount = decimal.Zero
	}
	if c.Discount.GreaterThan(c.Subtotal) {
		c.Discount = c.Subtotal
	}

	c.Total = c.Subtotal.Sub(c.Discount).Add(c.Fees)
	if c.Total.IsNegative() {
		c.Total = decimal.Zero
	}
	c.UpdatedAt = time.Now()
}

// ClearPromo removes any applied promotion
func (c *Cart) ClearPromo() {
	c.PromoCode = ""
	c.Discount = decimal.Zero
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]CartItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

// RecalculateTotal recomputes the line total
func (ci *CartItem) RecalculateTotal() {
	ci.TotalPrice = ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity))).Round(2)
}

// ApplySnapshot refreshes the denormalized fields from the live ticket type
func (ci *CartItem) ApplySnapshot(tt *TicketType) {
	ci.Name = tt.Name
	ci.UnitPrice = tt.Price
	ci.EventID = tt.EventID
	if tt.EventTitle != "" {
		ci.EventTitle = tt.EventTitle
	}
	ci.CategoryID = tt.CategoryID
	ci.AvailableQuantity = tt.Remaining()
	ci.MinQuantity = tt.MinQuantity
	ci.MaxQuantity = tt.MaxQuantity
	ci.RecalculateTotal()
}
