// Package queue publishes reservation events to a RabbitMQ topic exchange.
// Routing keys are the event kinds, e.g. "reservation.cancelled".
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kirinyoku/staygo/internal/domain"
)

const DefaultExchange = "staygo.reservations"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type ReservationEvent struct {
	ID          string             `json:"id"`
	Kind        domain.EventKind   `json:"kind"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Reservation domain.Reservation `json:"reservation"`
}

type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	conn     *amqp.Connection
	exchange string
	log      *slog.Logger
	now      func() time.Time
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string, log *slog.Logger) (*Publisher, error) {
	const op = "queue.Dial"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	p, err := NewPublisher(ch, exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	p.conn = conn

	return p, nil
}

func NewPublisher(ch Channel, exchange string, log *slog.Logger) (*Publisher, error) {
	const op = "queue.NewPublisher"

	if exchange == "" {
		exchange = DefaultExchange
	}

	if log == nil {
		log = slog.Default()
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Publisher{
		ch:       ch,
		exchange: exchange,
		log:      log,
		now:      time.Now,
	}, nil
}

// PublishReservation sends a persistent JSON event routed by its kind.
func (p *Publisher) PublishReservation(ctx context.Context, kind domain.EventKind, r domain.Reservation) error {
	const op = "queue.Publisher.PublishReservation"

	ev := ReservationEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		OccurredAt:  p.now().UTC(),
		Reservation: r,
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(kind),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, string(kind), false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	p.log.Debug("reservation event published", "kind", kind, "reference", r.ReferenceCode, "message_id", ev.ID)

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}

	return err
}
