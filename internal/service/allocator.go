package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Allocator owns ticket-row transitions.  Every bulk transition reports
// the rows actually moved so callers can tell a lost race from success.
type Allocator struct {
	store repository.Store
	now   func() time.Time
}

// NewAllocator returns an Allocator over store.
func NewAllocator(store repository.Store) *Allocator {
	return &Allocator{store: store, now: time.Now}
}

// FindSpecific returns the available tickets among the given seats.
func (a *Allocator) FindSpecific(ctx context.Context, eventID, zoneName string, seatNumbers []string) ([]model.Ticket, error) {
	if len(seatNumbers) == 0 {
		return nil, nil
	}
	return a.store.FindTickets(ctx, repository.TicketFilter{
		EventID:     eventID,
		ZoneName:    zoneName,
		SeatNumbers: seatNumbers,
		Status:      model.TicketAvailable,
	})
}

// FindAvailable returns up to limit available tickets of a zone.  Which
// ones is unspecified.
func (a *Allocator) FindAvailable(ctx context.Context, eventID, zoneName string, limit int) ([]model.Ticket, error) {
	if limit <= 0 {
		return nil, nil
	}
	return a.store.FindTickets(ctx, repository.TicketFilter{
		EventID:  eventID,
		ZoneName: zoneName,
		Status:   model.TicketAvailable,
		Limit:    limit,
	})
}

// Reserve moves the tickets from available to reserved for owner.  A nil
// owner releases them instead: reserved back to available, whoever held
// them.
func (a *Allocator) Reserve(ctx context.Context, eventID string, ticketIDs []string, owner *string) (int64, error) {
	return a.ReserveAt(ctx, eventID, ticketIDs, owner, a.now().UTC().Truncate(time.Microsecond))
}

// ReserveAt is Reserve with an explicit reservation stamp.  The stamp
// identifies the attempt for ReleaseAttempt.
func (a *Allocator) ReserveAt(ctx context.Context, eventID string, ticketIDs []string, owner *string, at time.Time) (int64, error) {
	if len(ticketIDs) == 0 {
		return 0, nil
	}
	f := repository.TicketFilter{EventID: eventID, TicketIDs: ticketIDs}
	if owner == nil {
		return a.store.UpdateTicketStatus(ctx, f, model.TicketReserved, model.TicketAvailable, nil, time.Time{})
	}
	return a.store.UpdateTicketStatus(ctx, f, model.TicketAvailable, model.TicketReserved, owner, at)
}

// ReleaseAttempt reverts only the tickets that owner reserved at the
// given stamp.  Rows that went to a competing attempt stay reserved.
func (a *Allocator) ReleaseAttempt(ctx context.Context, eventID string, ticketIDs []string, owner string, at time.Time) (int64, error) {
	if len(ticketIDs) == 0 {
		return 0, nil
	}
	return a.store.UpdateTicketStatus(ctx, repository.TicketFilter{
		EventID:    eventID,
		TicketIDs:  ticketIDs,
		OwnerID:    &owner,
		ReservedAt: &at,
	}, model.TicketReserved, model.TicketAvailable, nil, time.Time{})
}

// ClaimPool reserves up to qty available tickets of a standing zone for
// owner in one conditional update and returns the tickets it got.  Which
// ones is the store's choice; concurrent claims never share a row, so
// each caller either gets what it asked for or a short count over rows
// nobody else holds.
func (a *Allocator) ClaimPool(ctx context.Context, eventID, zoneName string, qty int, owner string, at time.Time) ([]model.Ticket, error) {
	if qty <= 0 {
		return nil, nil
	}
	n, err := a.store.UpdateTicketStatus(ctx, repository.TicketFilter{
		EventID:  eventID,
		ZoneName: zoneName,
		Limit:    qty,
	}, model.TicketAvailable, model.TicketReserved, &owner, at)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	mine := repository.TicketFilter{
		EventID:    eventID,
		ZoneName:   zoneName,
		Status:     model.TicketReserved,
		OwnerID:    &owner,
		ReservedAt: &at,
	}
	tickets, err := a.store.FindTickets(ctx, mine)
	if err != nil {
		// The claim cannot be handed to the caller without its IDs.
		if _, rerr := a.store.UpdateTicketStatus(context.WithoutCancel(ctx), mine,
			model.TicketReserved, model.TicketAvailable, nil, time.Time{}); rerr != nil {
			return nil, errors.Join(err, fmt.Errorf("release claim: %w", rerr))
		}
		return nil, err
	}
	return tickets, nil
}

// MarkSold moves reserved seats of a zone to sold.  Seats that are not
// reserved are left alone and not counted.
func (a *Allocator) MarkSold(ctx context.Context, eventID, zoneName string, seatNumbers []string) (int64, error) {
	if len(seatNumbers) == 0 {
		return 0, nil
	}
	return a.store.UpdateTicketStatus(ctx, repository.TicketFilter{
		EventID:     eventID,
		ZoneName:    zoneName,
		SeatNumbers: seatNumbers,
	}, model.TicketReserved, model.TicketSold, nil, time.Time{})
}

// BulkCreate stores ev together with exactly TotalSeats available
// tickets per zone, atomically, and returns how many tickets were
// written.
func (a *Allocator) BulkCreate(ctx context.Context, ev *model.Event) (int, error) {
	var tickets []model.Ticket
	for _, z := range ev.Zones {
		if z.TotalSeats < 0 {
			return 0, fmt.Errorf("%w: zone %q has negative capacity", model.ErrInvalid, z.Name)
		}
		for n := 1; n <= z.TotalSeats; n++ {
			tickets = append(tickets, model.Ticket{
				ID:         uuid.NewString(),
				EventID:    ev.ID,
				ZoneID:     z.ID,
				ZoneName:   z.Name,
				SeatNumber: model.SeatLabel(z, n),
				Status:     model.TicketAvailable,
			})
		}
	}
	if err := a.store.CreateEvent(ctx, ev, tickets); err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return len(tickets), nil
}
