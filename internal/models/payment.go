package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes charges from refunds
type PaymentKind string

const (
	PaymentCharge PaymentKind = "CHARGE"
	PaymentRefund PaymentKind = "REFUND"
)

// PaymentStatus is the provider-reported outcome
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment records money moving for an order
type Payment struct {
	ID          int             `json:"id" db:"id"`
	OrderID     int             `json:"order_id" db:"order_id"`
	Kind        PaymentKind     `json:"kind" db:"kind"`
	Provider    string          `json:"provider" db:"provider"`
	ExternalRef string          `json:"external_ref" db:"external_ref"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      PaymentStatus   `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PaymentConfirmation is what the payment provider tells us when a checkout succeeds
type PaymentConfirmation struct {
	Provider    string          `json:"provider"`
	ExternalRef string          `json:"external_ref"`
	Amount      decimal.Decimal `json:"amount"`
}

// CheckoutRequest carries buyer details for turning a cart into an order
type CheckoutRequest struct {
	BillingEmail string         `json:"billing_email"`
	BillingName  string         `json:"billing_name"`
	Notes        string         `json:"notes"`
	Attendees    []AttendeeInfo `json:"attendees"`
}
