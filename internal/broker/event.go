// Package broker carries booking state changes over RabbitMQ: a
// publisher used by the booking executor and an audit consumer that
// appends every event to a log file.
package broker

import (
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// Queue names.  Both are durable and messages are persistent.
const (
	QueueConfirmed = "booking.confirmed"
	QueueCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.
// It carries enough for downstream consumers to log or notify without
// reading the database.
type BookingEvent struct {
	Type       string   `json:"type"` // "confirmed" or "cancelled"
	BookingID  string   `json:"booking_id"`
	UserID     string   `json:"user_id"`
	EventID    string   `json:"event_id"`
	ZoneName   string   `json:"zone_name"`
	Quantity   int      `json:"quantity"`
	TotalPrice int64    `json:"total_price"`
	TicketIDs  []string `json:"ticket_ids"`
	Reason     string   `json:"reason,omitempty"`
	OccurredAt string   `json:"occurred_at"`
}

// NewBookingEvent builds the event for b at the given time.
func NewBookingEvent(b *model.Booking, reason string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       string(b.Status),
		BookingID:  b.ID,
		UserID:     b.UserID,
		EventID:    b.EventID,
		ZoneName:   b.ZoneName,
		Quantity:   b.Quantity,
		TotalPrice: b.TotalPrice,
		TicketIDs:  append([]string(nil), b.TicketIDs...),
		Reason:     reason,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
