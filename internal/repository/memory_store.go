package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// MemoryStore is a process-local Store with the same conditional
// semantics as MySQLStore.  It backs the test suites and local runs with
// STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]*model.Event
	tickets  map[string]*model.Ticket
	order    []string // ticket IDs in insertion order
	bookings map[string]*model.Booking

	// FailDecrement, when set, is consulted before every stock
	// decrement.  A non-nil error is returned as a store failure.
	FailDecrement func(eventID, zoneID string, qty int) error
	// FailInsertBooking, when set, makes InsertBooking fail.
	FailInsertBooking func(b *model.Booking) error
	// FailInsertTickets, when set, fails CreateEvent at the point the
	// tickets would be written.  Nothing of the event is kept.
	FailInsertTickets func(tickets []model.Ticket) error
	// FailCancelBooking, when set, makes CancelBooking fail before it
	// writes anything.
	FailCancelBooking func(b *model.Booking) error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]*model.Event),
		tickets:  make(map[string]*model.Ticket),
		bookings: make(map[string]*model.Booking),
	}
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	cp := *ev
	cp.Zones = append([]model.Zone(nil), ev.Zones...)
	return &cp, nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, ev *model.Event, tickets []model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return fmt.Errorf("insert event: %w", ErrDuplicate)
	}
	seen := make(map[string]bool, len(ev.Zones))
	for i := range ev.Zones {
		if seen[ev.Zones[i].Name] {
			return fmt.Errorf("insert zone %q: %w", ev.Zones[i].Name, ErrDuplicate)
		}
		seen[ev.Zones[i].Name] = true
	}
	ids := make(map[string]bool, len(tickets))
	for i := range tickets {
		id := tickets[i].ID
		if _, ok := s.tickets[id]; ok || ids[id] {
			return fmt.Errorf("insert tickets: %w", ErrDuplicate)
		}
		ids[id] = true
	}
	if s.FailInsertTickets != nil {
		if err := s.FailInsertTickets(tickets); err != nil {
			return model.Internal("insert tickets", err)
		}
	}

	for i := range ev.Zones {
		ev.Zones[i].EventID = ev.ID
		ev.Zones[i].AvailableSeats = ev.Zones[i].TotalSeats
	}
	cp := *ev
	cp.Zones = append([]model.Zone(nil), ev.Zones...)
	s.events[ev.ID] = &cp
	for i := range tickets {
		t := copyTicket(&tickets[i])
		s.tickets[t.ID] = &t
		s.order = append(s.order, t.ID)
	}
	return nil
}

func (s *MemoryStore) zone(eventID, zoneID string) *model.Zone {
	ev, ok := s.events[eventID]
	if !ok {
		return nil
	}
	return ev.ZoneByID(zoneID)
}

func (s *MemoryStore) DecrementZoneStock(_ context.Context, eventID, zoneID string, qty int) (bool, error) {
	if s.FailDecrement != nil {
		if err := s.FailDecrement(eventID, zoneID, qty); err != nil {
			return false, model.Internal("decrement zone stock", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zone(eventID, zoneID)
	if z == nil || z.AvailableSeats < qty {
		return false, nil
	}
	z.AvailableSeats -= qty
	return true, nil
}

func (s *MemoryStore) IncrementZoneStock(_ context.Context, eventID, zoneID string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zone(eventID, zoneID)
	if z == nil || z.AvailableSeats+qty > z.TotalSeats {
		return false, nil
	}
	z.AvailableSeats += qty
	return true, nil
}

// SetAvailableSeats overwrites a zone's stock counter.  Tests use it to
// simulate another instance draining the zone between allocation and
// decrement.
func (s *MemoryStore) SetAvailableSeats(eventID, zoneID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z := s.zone(eventID, zoneID); z != nil {
		z.AvailableSeats = n
	}
}

func (s *MemoryStore) FindTickets(_ context.Context, f TicketFilter) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, id := range s.order {
		t := s.tickets[id]
		if !f.match(t) {
			continue
		}
		out = append(out, copyTicket(t))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateTicketStatus(_ context.Context, f TicketFilter, from, to model.TicketStatus, owner *string, at time.Time) (int64, error) {
	if f.EventID == "" {
		return 0, ErrEmptyFilter
	}
	if !from.CanTransition(to) {
		return 0, fmt.Errorf("%s to %s: %w", from, to, ErrTicketTransition)
	}
	f.Status = from
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range s.order {
		if f.Limit > 0 && n == int64(f.Limit) {
			break
		}
		t := s.tickets[id]
		if !f.match(t) {
			continue
		}
		t.Status = to
		switch to {
		case model.TicketReserved:
			t.OwnerID = copyString(owner)
			stamp := at
			t.ReservedAt = &stamp
		case model.TicketAvailable:
			t.OwnerID = nil
			t.ReservedAt = nil
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) InsertBooking(_ context.Context, b *model.Booking) error {
	if s.FailInsertBooking != nil {
		if err := s.FailInsertBooking(b); err != nil {
			return model.Internal("insert booking", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return fmt.Errorf("insert booking: %w", ErrDuplicate)
	}
	cp := *b
	cp.TicketIDs = append([]string(nil), b.TicketIDs...)
	s.bookings[b.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	cp := *b
	cp.TicketIDs = append([]string(nil), b.TicketIDs...)
	return &cp, nil
}

func (s *MemoryStore) UpdateBookingStatus(_ context.Context, id string, from, to model.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (s *MemoryStore) ListBookingsByStatus(_ context.Context, status model.BookingStatus) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status == status {
			cp := *b
			cp.TicketIDs = append([]string(nil), b.TicketIDs...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (s *MemoryStore) CancelBooking(_ context.Context, b *model.Booking) (bool, error) {
	if s.FailCancelBooking != nil {
		if err := s.FailCancelBooking(b); err != nil {
			return false, model.Internal("cancel booking", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok {
		return false, model.ErrBookingNotFound
	}
	if cur.Status != model.BookingPending {
		return false, nil
	}
	cur.Status = model.BookingCancelled
	for _, id := range cur.TicketIDs {
		t, ok := s.tickets[id]
		if !ok || t.Status != model.TicketReserved || t.OwnerID == nil || *t.OwnerID != cur.UserID {
			continue
		}
		t.Status = model.TicketAvailable
		t.OwnerID = nil
		t.ReservedAt = nil
	}
	if z := s.zone(cur.EventID, cur.ZoneID); z != nil && z.AvailableSeats+cur.Quantity <= z.TotalSeats {
		z.AvailableSeats += cur.Quantity
	}
	return true, nil
}

// BookingCount returns the number of stored bookings.
func (s *MemoryStore) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func copyTicket(t *model.Ticket) model.Ticket {
	cp := *t
	cp.OwnerID = copyString(t.OwnerID)
	if t.ReservedAt != nil {
		at := *t.ReservedAt
		cp.ReservedAt = &at
	}
	return cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*MySQLStore)(nil)
