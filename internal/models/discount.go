package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType represents how a discount reduces the cart
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Discount is an organizer-defined promo code
type Discount struct {
	ID                int             `json:"id" db:"id"`
	Code              string          `json:"code" db:"code"`
	Type              DiscountType    `json:"type" db:"type"`
	PercentOff        decimal.Decimal `json:"percent_off" db:"percent_off"`
	AmountOff         decimal.Decimal `json:"amount_off" db:"amount_off"`
	EventID           *int            `json:"event_id,omitempty" db:"event_id"`
	TicketCategoryID  *int            `json:"ticket_category_id,omitempty" db:"ticket_category_id"`
	TicketTypeIDs     []int           `json:"ticket_type_ids,omitempty" db:"ticket_type_ids"`
	StartDate         *time.Time      `json:"start_date,omitempty" db:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty" db:"end_date"`
	QuantityAvailable *int            `json:"quantity_available,omitempty" db:"quantity_available"`
	QuantitySold      int             `json:"quantity_sold" db:"quantity_sold"`
}

// CanonicalCode normalizes a promo code for lookup and storage
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate validates the discount definition
func (d *Discount) Validate() error {
	if CanonicalCode(d.Code) == "" {
		return errors.New("discount code is required")
	}

	switch d.Type {
	case DiscountPercentage:
		if d.PercentOff.IsNegative() || d.PercentOff.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("percent off must be between 0 and 100")
		}
	case DiscountFixedAmount:
		if d.AmountOff.IsNegative() {
			return errors.New("amount off cannot be negative")
		}
	default:
		return errors.New("invalid discount type")
	}

	if d.StartDate != nil && d.EndDate != nil && d.StartDate.After(*d.EndDate) {
		return errors.New("discount start date must be before end date")
	}

	return nil
}

// NotYetActive returns true if the promo window hasn't opened
func (d *Discount) NotYetActive(now time.Time) bool {
	return d.StartDate != nil && now.Before(*d.StartDate)
}

// IsExpired returns true if the promo window has closed
func (d *Discount) IsExpired(now time.Time) bool {
	return d.EndDate != nil && now.After(*d.EndDate)
}

// UsageLimitReached returns true if the usage cap is exhausted
func (d *Discount) UsageLimitReached() bool {
	return d.QuantityAvailable != nil && d.QuantitySold >= *d.QuantityAvailable
}

// IsScoped returns true if the discount only applies to part of a cart
func (d *Discount) IsScoped() bool {
	return d.EventID != nil || d.TicketCategoryID != nil || len(d.TicketTypeIDs) > 0
}

// AppliesTo reports whether a cart line satisfies every scope the discount sets
func (d *Discount) AppliesTo(item CartItem) bool {
	if d.EventID != nil && item.EventID != *d.EventID {
		return false
	}
	if d.TicketCategoryID != nil && item.CategoryID != *d.TicketCategoryID {
		return false
	}
	if len(d.TicketTypeIDs) > 0 {
		found := false
		for _, id := range d.TicketTypeIDs {
			if id == item.TicketTypeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Amount computes the discount for an eligible amount, never exceeding it
func (d *Discount) Amount(eligible decimal.Decimal) decimal.Decimal {
	if !eligible.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = eligible.Mul(d.PercentOff).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixedAmount:
		amount = decimal.Min(d.AmountOff, eligible)
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(eligible) {
		amount = eligible
	}
	return amount.Round(2)
}
