// Package events publishes order lifecycle notifications for downstream
// consumers such as ticket delivery and analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"ticketing-checkout/internal/models"
)

type EventType string

const (
	OrderCreated   EventType = "order.created"
	OrderPaid      EventType = "order.paid"
	OrderExpired   EventType = "order.expired"
	OrderAborted   EventType = "order.aborted"
	OrderCancelled EventType = "order.cancelled"
)

// OrderEvent is the message body published for every order transition
type OrderEvent struct {
	Type        EventType          `json:"type"`
	OrderID     int                `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	UserID      int                `json:"user_id,omitempty"`
	EventID     int                `json:"event_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Tickets     int                `json:"tickets"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// NewOrderEvent snapshots the order into an event of the given type
func NewOrderEvent(eventType EventType, order *models.Order, now time.Time) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		UserID:      order.UserID,
		EventID:     order.EventID,
		TotalAmount: order.TotalAmount,
		Tickets:     order.TicketCount(),
		OccurredAt:  now,
	}
}

// Publisher delivers order events. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events to a Kafka topic keyed by order id
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaPublisher{writer: w}
}

// Publish encodes the event and writes it synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(evt.OrderID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
		Time: evt.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for order %d: %w", evt.Type, evt.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, evt OrderEvent) error { return nil }
