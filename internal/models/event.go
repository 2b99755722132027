package models

import "time"

// EventStatus represents the status of an event
type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPublished EventStatus = "published"
	StatusCancelled EventStatus = "cancelled"
)

// Event is the read model the checkout core needs to bind an order
type Event struct {
	ID        int         `json:"id" db:"id"`
	Title     string      `json:"title" db:"title"`
	StartDate time.Time   `json:"start_date" db:"start_date"`
	Status    EventStatus `json:"status" db:"status"`
}

// IsPublished returns true if the event is visible to buyers
func (e *Event) IsPublished() bool {
	return e.Status == StatusPublished
}
