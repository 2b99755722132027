package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

func TestTicketIssuer_QRPayload(t *testing.T) {
	issuer := NewTicketIssuer("qr-secret")
	payload := issuer.QRPayload(12, 3, "6f1c2d7e-0000-4000-8000-000000000001")

	assert.True(t, strings.HasPrefix(payload, "TKT-12-3-6f1c2d7e-0000-4000-8000-000000000001-"))
	assert.Len(t, payload[strings.LastIndex(payload, "-")+1:], 16)
	assert.True(t, issuer.VerifyQRPayload(payload))
	assert.Equal(t, payload, issuer.QRPayload(12, 3, "6f1c2d7e-0000-4000-8000-000000000001"))
}

func TestTicketIssuer_VerifyRejectsForgeries(t *testing.T) {
	issuer := NewTicketIssuer("qr-secret")
	payload := issuer.QRPayload(12, 3, "abc")

	tests := []struct {
		name    string
		payload string
	}{
		{name: "other order", payload: strings.Replace(payload, "TKT-12-", "TKT-13-", 1)},
		{name: "other secret", payload: NewTicketIssuer("different").QRPayload(12, 3, "abc")},
		{name: "no signature", payload: "TKT-12-3-abc"},
		{name: "empty", payload: ""},
		{name: "only separator", payload: "-"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, issuer.VerifyQRPayload(tc.payload))
		})
	}
}

func TestTicketIssuer_IssueInsideUnitOfWork(t *testing.T) {
	f := newFixture(t)
	general := f.addTicketType("General", "20.00", 100)
	vip := f.addTicketType("VIP", "90.00", 100)

	_, err := f.cartSvc.AddItem(f.ctx, session("s1"), general.ID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.AddItem(f.ctx, session("s1"), vip.ID, 1)
	require.NoError(t, err)
	req := defaultCheckout
	req.Attendees = []models.AttendeeInfo{{FirstName: "Alan"}, {FirstName: "Barbara"}, {FirstName: "Claude"}, {FirstName: "Dennis"}}
	order, err := f.checkout.CreateOrderFromCart(f.ctx, session("s1"), req)
	require.NoError(t, err)

	var issued []*models.Ticket
	err = f.store.Do(f.ctx, func(repos repositories.Repositories) error {
		var err error
		issued, err = f.issuer.Issue(f.ctx, repos, order)
		return err
	})
	require.NoError(t, err)

	require.Len(t, issued, 3)
	assert.Equal(t, general.ID, issued[0].TicketTypeID)
	assert.Equal(t, general.ID, issued[1].TicketTypeID)
	assert.Equal(t, vip.ID, issued[2].TicketTypeID)
	for _, ticket := range issued {
		require.NotNil(t, ticket.AttendeeID)
	}

	attendees := f.store.Attendees(order.ID)
	require.Len(t, attendees, 4)
	assert.Equal(t, issued[0].ID, *attendees[0].TicketID)
	assert.Equal(t, issued[2].ID, *attendees[2].TicketID)
	assert.False(t, attendees[3].IsAssigned())
}

func TestManualPaymentGateway(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{ID: 5, OrderNumber: "ORD-20250601120000-000005", Status: models.OrderPending, TotalAmount: dec("90")}

	charge := f.gateway.BuildSuccessRecord(order, models.PaymentConfirmation{ExternalRef: "cs_1"})
	assert.Equal(t, models.PaymentCharge, charge.Kind)
	assert.Equal(t, "stripe", charge.Provider)
	assert.Equal(t, models.PaymentSucceeded, charge.Status)
	assert.True(t, charge.Amount.Equal(dec("90")))
	assert.Equal(t, f.now, charge.CreatedAt)

	_, err := f.gateway.Refund(f.ctx, order)
	assert.Error(t, err)

	order.Status = models.OrderPaid
	refund, err := f.gateway.Refund(f.ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefund, refund.Kind)
	assert.Equal(t, "refund_ORD-20250601120000-000005", refund.ExternalRef)
	assert.True(t, refund.Amount.Equal(dec("90")))

	assert.Equal(t, "manual", NewManualPaymentGateway("").BuildSuccessRecord(order, models.PaymentConfirmation{}).Provider)
}
