package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	consumerPrefetch = 50
	maxBackoff       = 30 * time.Second
)

// Consumer reads both booking queues and appends one human readable line
// per event to a log file.
type Consumer struct {
	url     string
	logPath string
	logger  *zap.SugaredLogger
}

// NewConsumer returns a Consumer writing to logPath.
func NewConsumer(url, logPath string, logger *zap.Logger) *Consumer {
	return &Consumer{url: url, logPath: logPath, logger: logger.Sugar()}
}

// Run keeps a consumer attached to the broker, reconnecting with
// exponential backoff, until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warnf("dial broker failed: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warnf("consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		c.logger.Warnf("set QoS failed: %v", err)
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	confirmed, err := ch.Consume(QueueConfirmed, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueConfirmed, err)
	}
	cancelled, err := ch.Consume(QueueCancelled, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueCancelled, err)
	}

	for {
		var d amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-confirmed:
		case d, ok = <-cancelled:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(d.Body); err != nil {
			c.logger.Errorf("handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

// Handle decodes one message and appends its line to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == "" {
		return errors.New("event without booking_id")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single log line ending in a newline.
func FormatLine(ev BookingEvent) string {
	line := fmt.Sprintf("[%s] Booking %s | booking_id=%s | user_id=%s | event_id=%s | zone=%q | quantity=%d | total=%d | tickets=[%s]",
		ev.OccurredAt, ev.Type, ev.BookingID, ev.UserID, ev.EventID, ev.ZoneName, ev.Quantity, ev.TotalPrice,
		strings.Join(ev.TicketIDs, ","))
	if ev.Reason != "" {
		line += " | reason=" + ev.Reason
	}
	return line + "\n"
}
