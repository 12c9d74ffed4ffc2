package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2030, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notified struct {
	kind   string
	id     string
	reason string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, b *model.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{kind: "confirmed", id: b.ID})
	return nil
}

func (n *recordingNotifier) BookingCancelled(_ context.Context, b *model.Booking, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{kind: "cancelled", id: b.ID, reason: reason})
	return nil
}

func (n *recordingNotifier) all() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notified(nil), n.events...)
}

type fixture struct {
	store    *repository.MemoryStore
	alloc    *Allocator
	exec     *Executor
	events   *EventService
	clock    *fakeClock
	notifier *recordingNotifier
	event    *model.Event
}

const testTTL = time.Minute

// newFixture creates an event one day ahead with a seated zone "A" and
// a standing zone "GA".  Zones with no capacity are left out.
func newFixture(t *testing.T, seated, standing int) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
	}
	f.alloc = NewAllocator(f.store)
	f.exec = NewExecutor(f.store, f.alloc,
		WithClock(f.clock.Now),
		WithBookingTTL(testTTL),
		WithNotifier(f.notifier),
	)
	f.events = NewEventService(f.store, f.alloc)
	var zones []model.Zone
	if seated > 0 {
		zones = append(zones, model.Zone{Name: "A", Price: 2500, TotalSeats: seated, Type: model.ZoneSeated})
	}
	if standing > 0 {
		zones = append(zones, model.Zone{Name: "GA", Price: 1000, TotalSeats: standing, Type: model.ZoneStanding})
	}
	ev, err := f.events.Create(context.Background(), &model.Event{
		Title: "Opening night",
		Date:  f.clock.Now().Add(24 * time.Hour),
		Zones: zones,
	})
	require.NoError(t, err)
	f.event = ev
	return f
}

func (f *fixture) zone(t *testing.T, name string) model.Zone {
	t.Helper()
	ev, err := f.store.GetEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	z := ev.ZoneByName(name)
	require.NotNil(t, z)
	return *z
}

func (f *fixture) tickets(t *testing.T, zone string, status model.TicketStatus) []model.Ticket {
	t.Helper()
	out, err := f.store.FindTickets(context.Background(), repository.TicketFilter{
		EventID: f.event.ID, ZoneName: zone, Status: status,
	})
	require.NoError(t, err)
	return out
}
