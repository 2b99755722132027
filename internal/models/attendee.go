package models

import (
	"errors"
	"strings"
)

// Attendee is a named person collected at checkout and later bound to a ticket
type Attendee struct {
	ID        int    `json:"id" db:"id"`
	OrderID   int    `json:"order_id" db:"order_id"`
	TicketID  *int   `json:"ticket_id,omitempty" db:"ticket_id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
}

// AttendeeInfo is the attendee payload of a checkout request
type AttendeeInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Validate validates the attendee payload
func (a AttendeeInfo) Validate() error {
	if strings.TrimSpace(a.FirstName) == "" && strings.TrimSpace(a.LastName) == "" {
		return errors.New("attendee name is required")
	}
	if a.Email != "" && !orderEmailRegex.MatchString(a.Email) {
		return errors.New("attendee email format is invalid")
	}
	return nil
}

// IsAssigned returns true if the attendee already holds a ticket
func (a *Attendee) IsAssigned() bool {
	return a.TicketID != nil
}
