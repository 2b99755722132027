package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// TicketIssuer generates tickets for a paid order
type TicketIssuer struct {
	qrSecret []byte
}

func NewTicketIssuer(qrSecret string) *TicketIssuer {
	return &TicketIssuer{qrSecret: []byte(qrSecret)}
}

// Issue creates one ticket per purchased unit and binds the order's
// unassigned attendees to them in order. Extra tickets stay unassigned.
func (i *TicketIssuer) Issue(ctx context.Context, repos repositories.Repositories, order *models.Order) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	for _, item := range order.Items {
		for n := 0; n < item.Quantity; n++ {
			code := uuid.New().String()
			ticket := &models.Ticket{
				OrderID:      order.ID,
				TicketTypeID: item.TicketTypeID,
				Code:         code,
				QRPayload:    i.QRPayload(order.ID, item.TicketTypeID, code),
				Status:       models.TicketActive,
			}
			if err := repos.Tickets.CreateTicket(ctx, ticket); err != nil {
				return nil, fmt.Errorf("failed to create ticket: %w", err)
			}
			tickets = append(tickets, ticket)
		}
	}

	attendees, err := repos.Attendees.FindUnassigned(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}

	for idx, attendee := range attendees {
		if idx >= len(tickets) {
			break
		}
		ticket := tickets[idx]
		if err := repos.Attendees.AssignTicket(ctx, attendee.ID, ticket.ID); err != nil {
			return nil, fmt.Errorf("failed to assign attendee: %w", err)
		}
		attendeeID := attendee.ID
		ticket.AttendeeID = &attendeeID
	}

	return tickets, nil
}

// QRPayload builds the scannable payload for a ticket: TKT-<order>-<type>-<code>-<signature>
func (i *TicketIssuer) QRPayload(orderID, ticketTypeID int, code string) string {
	body := fmt.Sprintf("TKT-%d-%d-%s", orderID, ticketTypeID, code)
	return body + "-" + i.sign(body)
}

// VerifyQRPayload checks the signature on a scanned payload
func (i *TicketIssuer) VerifyQRPayload(payload string) bool {
	idx := strings.LastIndex(payload, "-")
	if idx <= 0 {
		return false
	}
	body, signature := payload[:idx], payload[idx+1:]
	return hmac.Equal([]byte(signature), []byte(i.sign(body)))
}

func (i *TicketIssuer) sign(body string) string {
	mac := hmac.New(sha256.New, i.qrSecret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
