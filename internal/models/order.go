package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderExpired   OrderStatus = "EXPIRED"
	OrderAborted   OrderStatus = "ABORTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order represents an order in the system
type Order struct {
	ID              int             `json:"id" db:"id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	UserID          int             `json:"user_id,omitempty" db:"user_id"` // 0 for guest checkout
	EventID         int             `json:"event_id" db:"event_id"`
	CartKey         string          `json:"-" db:"cart_key"`
	Status          OrderStatus     `json:"status" db:"status"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	FeesAmount      decimal.Decimal `json:"fees_amount" db:"fees_amount"`
	PromoCode       string          `json:"promo_code,omitempty" db:"promo_code"`
	BillingEmail    string          `json:"billing_email" db:"billing_email"`
	BillingName     string          `json:"billing_name" db:"billing_name"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	PaymentDeadline time.Time       `json:"payment_deadline" db:"payment_deadline"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`

	Items    []OrderItem `json:"items"`
	Tickets  []*Ticket   `json:"tickets,omitempty"`
	Payments []*Payment  `json:"payments,omitempty"`
}

// OrderItem is the immutable snapshot of a cart line at order creation
type OrderItem struct {
	ID             int             `json:"id" db:"id"`
	OrderID        int             `json:"order_id" db:"order_id"`
	TicketTypeID   int             `json:"ticket_type_id" db:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name" db:"ticket_type_name"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"total_price"`
}

var (
	// Order number format: ORD-YYYYMMDDHHMMSS-XXXXXX (e.g., ORD-20240101093000-123456)
	orderNumberRegex = regexp.MustCompile(`^ORD-\d{14}-\d{6}$`)
	// Email validation regex for orders
	orderEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validate validates the order data
func (o *Order) Validate() error {
	if err := o.validateOrderNumber(); err != nil {
		return err
	}

	if err := validateOrderStatus(o.Status); err != nil {
		return err
	}

	if o.TotalAmount.IsNegative() {
		return errors.New("total amount cannot be negative")
	}

	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}

	if err := ValidateBillingInfo(o.BillingEmail, o.BillingName); err != nil {
		return err
	}

	return nil
}

// validateOrderNumber validates the order number
func (o *Order) validateOrderNumber() error {
	if o.OrderNumber == "" {
		return errors.New("order number is required")
	}

	if !orderNumberRegex.MatchString(o.OrderNumber) {
		return errors.New("order number format is invalid")
	}

	return nil
}

// validateOrderStatus validates an order status
func validateOrderStatus(status OrderStatus) error {
	switch status {
	case OrderPending, OrderPaid, OrderExpired, OrderAborted, OrderCancelled:
		return nil
	default:
		return errors.New("invalid order status")
	}
}

// ValidateBillingInfo validates order billing information
func ValidateBillingInfo(billingEmail, billingName string) error {
	if billingEmail == "" {
		return errors.New("billing email is required")
	}

	if strings.TrimSpace(billingName) == "" {
		return errors.New("billing name is required")
	}

	if len(billingEmail) > 255 {
		return errors.New("billing email must be less than 255 characters")
	}

	if len(billingName) > 255 {
		return errors.New("billing name must be less than 255 characters")
	}

	if !orderEmailRegex.MatchString(billingEmail) {
		return errors.New("billing email format is invalid")
	}

	return nil
}

// GenerateOrderNumber generates a human-shareable order number. Collisions are
// possible but unlikely; storage enforces uniqueness.
func GenerateOrderNumber(now time.Time) string {
	stamp := now.UTC().Format("20060102150405")

	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to timestamp-based generation if crypto/rand fails
		return fmt.Sprintf("ORD-%s-%06d", stamp, now.UnixNano()%1000000)
	}

	return fmt.Sprintf("ORD-%s-%06d", stamp, randomNum.Int64())
}

// IsPending returns true if the order is pending
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsPaid returns true if the order is paid
func (o *Order) IsPaid() bool {
	return o.Status == OrderPaid
}

// IsTerminal returns true if no further transitions are possible
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderExpired, OrderAborted, OrderCancelled:
		return true
	default:
		return false
	}
}

// CanBeFinalized returns true if a payment confirmation can be applied
func (o *Order) CanBeFinalized() bool {
	return o.Status == OrderPending
}

// CanBeCancelled returns true if the order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderPending || o.Status == OrderPaid
}

// RequiresRefund returns true if cancelling the order must refund the buyer
func (o *Order) RequiresRefund() bool {
	return o.Status == OrderPaid
}

// IsOverdue returns true if a pending order passed its payment deadline
func (o *Order) IsOverdue(now time.Time) bool {
	return o.Status == OrderPending && !o.PaymentDeadline.IsZero() && now.After(o.PaymentDeadline)
}

// MatchesCart reports whether the order was assembled from the same lines,
// prices and totals the cart holds now
func (o *Order) MatchesCart(cart *Cart) bool {
	if len(o.Items) != len(cart.Items) || o.PromoCode != cart.PromoCode || !o.TotalAmount.Equal(cart.Total) {
		return false
	}
	for i, item := range cart.Items {
		ordered := o.Items[i]
		if ordered.TicketTypeID != item.TicketTypeID || ordered.Quantity != item.Quantity || !ordered.UnitPrice.Equal(item.UnitPrice) {
			return false
		}
	}
	return true
}

// TicketCount returns the number of units purchased
func (o *Order) TicketCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// AppendNote appends a line to the order notes, keeping existing notes
func (o *Order) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = o.Notes + "\n" + note
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	clone := *o
	clone.Items = append([]OrderItem(nil), o.Items...)
	clone.Tickets = make([]*Ticket, len(o.Tickets))
	for i, t := range o.Tickets {
		tc := *t
		clone.Tickets[i] = &tc
	}
	clone.Payments = make([]*Payment, len(o.Payments))
	for i, p := range o.Payments {
		pc := *p
		clone.Payments[i] = &pc
	}
	return &clone
}

// GetStatusDisplayName returns a human-readable status name
func (o *Order) GetStatusDisplayName() string {
	switch o.Status {
	case OrderPending:
		return "Pending Payment"
	case OrderPaid:
		return "Paid"
	case OrderExpired:
		return "Expired"
	case OrderAborted:
		return "Payment Failed"
	case OrderCancelled:
		return "Cancelled"
	default:
		return string(o.Status)
	}
}
