package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
)

const (
	dialTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher sends booking events to RabbitMQ over one long-lived
// channel.  A failed publish drops the connection and the next publish
// dials again.
type Publisher struct {
	url    string
	logger *zap.SugaredLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is
// dialled until the first publish.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger.Sugar()}
}

// BookingConfirmed publishes to booking.confirmed.
func (p *Publisher) BookingConfirmed(ctx context.Context, b *model.Booking) error {
	return p.publish(ctx, QueueConfirmed, NewBookingEvent(b, "", time.Now()))
}

// BookingCancelled publishes to booking.cancelled.
func (p *Publisher) BookingCancelled(ctx context.Context, b *model.Booking, reason string) error {
	return p.publish(ctx, QueueCancelled, NewBookingEvent(b, reason, time.Now()))
}

func (p *Publisher) publish(ctx context.Context, queue string, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channelLocked()
	if err != nil {
		metrics.EventsPublished.WithLabelValues(queue, "dial_error").Inc()
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		p.resetLocked()
		metrics.EventsPublished.WithLabelValues(queue, "error").Inc()
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	metrics.EventsPublished.WithLabelValues(queue, "ok").Inc()
	return nil
}

// channelLocked returns the open channel, dialling and declaring the
// queues when there is none.
func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareQueues(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.logger.Infof("connected to broker")
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// declareQueues makes sure both booking queues exist.  Declaring is
// idempotent.
func declareQueues(ch *amqp.Channel) error {
	for _, q := range []string{QueueConfirmed, QueueCancelled} {
		if _, err := ch.QueueDeclare(
			q,     // name
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return nil
}
