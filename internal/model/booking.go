package model

import "time"

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking records a user's claim on Quantity tickets of one zone.  It is
// only written after the tickets were reserved and the zone stock was
// decremented.  A pending booking that is not confirmed before
// ExpiresAt is cancelled automatically and its stock is given back.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who made the booking.
//  EventID    – event being booked.
//  ZoneID     – zone whose stock was decremented.
//  ZoneName   – name of that zone.
//  Quantity   – number of tickets.
//  TotalPrice – zone price times quantity.
//  Status     – pending, confirmed or cancelled.
//  TicketIDs  – tickets reserved for the booking.
//  ExpiresAt  – deadline for confirmation.
//  CreatedAt  – creation timestamp.
type Booking struct {
	ID         string        `json:"id" db:"id"`                   // bookings.id
	UserID     string        `json:"user_id" db:"user_id"`         // bookings.user_id
	EventID    string        `json:"event_id" db:"event_id"`       // bookings.event_id
	ZoneID     string        `json:"zone_id" db:"zone_id"`         // bookings.zone_id
	ZoneName   string        `json:"zone_name" db:"zone_name"`     // bookings.zone_name
	Quantity   int           `json:"quantity" db:"quantity"`       // bookings.quantity
	TotalPrice int64         `json:"total_price" db:"total_price"` // bookings.total_price
	Status     BookingStatus `json:"status" db:"status"`           // bookings.status
	TicketIDs  []string      `json:"ticket_ids" db:"-"`            // booking_tickets.ticket_id
	ExpiresAt  time.Time     `json:"expires_at" db:"expires_at"`   // bookings.expires_at
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`   // bookings.created_at
}
