package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing-checkout/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	order := &models.Order{
		ID:          12,
		OrderNumber: "ORD-20240101093000-123456",
		Status:      models.OrderPaid,
		EventID:     3,
		TotalAmount: decimal.RequireFromString("75.50"),
		Items:       []models.OrderItem{{Quantity: 2}, {Quantity: 1}},
	}
	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(OrderPaid, order, now)))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "12", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "order.paid", string(msg.Headers[0].Value))

	var evt OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, OrderPaid, evt.Type)
	assert.Equal(t, 3, evt.Tickets)
	assert.True(t, evt.TotalAmount.Equal(decimal.RequireFromString("75.5")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), OrderEvent{Type: OrderCreated, OrderID: 1})
	assert.ErrorContains(t, err, "broker down")
}
