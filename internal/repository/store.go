package repository

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// Store is the set of atomic operations the booking pipeline needs from
// durable storage.  Implementations must apply each mutation as a single
// conditional write; none of them may read a value and write it back in a
// separate step.
type Store interface {
	// GetEvent returns the event with its zones, or model.ErrEventNotFound.
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
	// CreateEvent stores an event, its zones and their tickets in one
	// transaction: either all of them are written or none is.  Zone stock
	// starts at TotalSeats regardless of the AvailableSeats passed in.
	CreateEvent(ctx context.Context, ev *model.Event, tickets []model.Ticket) error

	// DecrementZoneStock subtracts qty from the zone's available seats
	// only if at least qty are left.  It reports whether the write
	// happened.
	DecrementZoneStock(ctx context.Context, eventID, zoneID string, qty int) (bool, error)
	// IncrementZoneStock gives qty seats back, refusing to go above the
	// zone's total.
	IncrementZoneStock(ctx context.Context, eventID, zoneID string, qty int) (bool, error)

	FindTickets(ctx context.Context, f TicketFilter) ([]model.Ticket, error)
	// UpdateTicketStatus moves the tickets matching f whose status is
	// currently from to status to, at most f.Limit of them when it is
	// set, and returns the number of rows moved.  Moving to reserved tags
	// owner and at; moving to available clears both; moving to sold keeps
	// them.  A transition the ticket lifecycle forbids is rejected with
	// ErrTicketTransition.
	UpdateTicketStatus(ctx context.Context, f TicketFilter, from, to model.TicketStatus, owner *string, at time.Time) (int64, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	// GetBooking returns the booking with its ticket IDs, or
	// model.ErrBookingNotFound.
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	// UpdateBookingStatus moves the booking from one status to another
	// and reports whether it was still in from.
	UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus) (bool, error)
	ListBookingsByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	// CancelBooking moves a pending booking to cancelled, frees the
	// booking's tickets still reserved by its user and returns its
	// quantity to the zone, all in one transaction.  It reports false
	// without writing anything when the booking already left pending.
	CancelBooking(ctx context.Context, b *model.Booking) (bool, error)
}

// TicketFilter selects tickets of one event.  Empty fields do not
// constrain the match.  Status is ignored by UpdateTicketStatus, whose
// from argument plays that role.
type TicketFilter struct {
	EventID     string
	ZoneName    string
	TicketIDs   []string
	SeatNumbers []string
	Status      model.TicketStatus
	OwnerID     *string
	ReservedAt  *time.Time
	Limit       int
}

func (f TicketFilter) match(t *model.Ticket) bool {
	if f.EventID != "" && t.EventID != f.EventID {
		return false
	}
	if f.ZoneName != "" && t.ZoneName != f.ZoneName {
		return false
	}
	if len(f.TicketIDs) > 0 && !lo.Contains(f.TicketIDs, t.ID) {
		return false
	}
	if len(f.SeatNumbers) > 0 && !lo.Contains(f.SeatNumbers, t.SeatNumber) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.OwnerID != nil && (t.OwnerID == nil || *t.OwnerID != *f.OwnerID) {
		return false
	}
	if f.ReservedAt != nil && (t.ReservedAt == nil || !t.ReservedAt.Equal(*f.ReservedAt)) {
		return false
	}
	return true
}
