// Package events publishes booking lifecycle notifications to RabbitMQ so
// downstream consumers (mailers, CRM sync) can react without being in the
// booking request path. Publishing is optional and never fails a booking.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"booking-service/internal/model"
)

const (
	exchange         = "bookings"
	RoutingConfirmed = "booking.confirmed"
	RoutingCancelled = "booking.cancelled"
)

// Publisher emits booking events. The zero-value Nop publisher is used when
// AMQP is disabled.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, b model.Booking)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, string, model.Booking) {}

// AMQPPublisher publishes JSON booking payloads to a topic exchange.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *slog.Logger
}

func NewAMQP(url string, log *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, log: log}, nil
}

// Publish sends the booking as a persistent JSON message. Failures are logged
// and swallowed: event delivery is best effort.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, b model.Booking) {
	body, err := json.Marshal(b)
	if err != nil {
		p.log.Error("events.marshal_failed", "booking_id", b.ID, "error", err)
		return
	}
	err = p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    b.ID,
		Body:         body,
	})
	if err != nil {
		p.log.Error("events.publish_failed", "booking_id", b.ID, "routing_key", routingKey, "error", err)
	}
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
