package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_FaultHooks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateEvent(ctx, &model.Event{
		ID:    "ev",
		Zones: []model.Zone{{ID: "z", Name: "A", TotalSeats: 2, Type: model.ZoneSeated}},
	}, nil))

	s.FailDecrement = func(string, string, int) error { return errors.New("disk full") }
	ok, err := s.DecrementZoneStock(ctx, "ev", "z", 1)
	assert.False(t, ok)
	assert.Equal(t, model.KindInternal, model.KindOf(err))

	s.FailDecrement = nil
	s.SetAvailableSeats("ev", "z", 0)
	ok, err = s.DecrementZoneStock(ctx, "ev", "z", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	s.FailInsertBooking = func(*model.Booking) error { return errors.New("timeout") }
	err = s.InsertBooking(ctx, &model.Booking{ID: "b"})
	assert.ErrorIs(t, err, model.ErrInternal)
	assert.Zero(t, s.BookingCount())

	s.FailInsertTickets = func([]model.Ticket) error { return errors.New("lock wait timeout") }
	err = s.CreateEvent(ctx, &model.Event{
		ID:    "ev2",
		Zones: []model.Zone{{ID: "z2", Name: "A", TotalSeats: 1, Type: model.ZoneSeated}},
	}, []model.Ticket{{ID: "t1", EventID: "ev2", ZoneID: "z2", ZoneName: "A", SeatNumber: "A1", Status: model.TicketAvailable}})
	assert.ErrorIs(t, err, model.ErrInternal)
	_, err = s.GetEvent(ctx, "ev2")
	assert.ErrorIs(t, err, model.ErrEventNotFound)

	s.FailInsertBooking = nil
	require.NoError(t, s.InsertBooking(ctx, &model.Booking{ID: "b2", EventID: "ev", ZoneID: "z", Quantity: 1, Status: model.BookingPending}))
	s.FailCancelBooking = func(*model.Booking) error { return errors.New("deadlock") }
	ok, err = s.CancelBooking(ctx, &model.Booking{ID: "b2"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrInternal)
	got, err := s.GetBooking(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, got.Status)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateEvent(ctx, &model.Event{
		ID:    "ev",
		Zones: []model.Zone{{ID: "z", Name: "A", TotalSeats: 1, Type: model.ZoneSeated}},
	}, nil))
	ev, err := s.GetEvent(ctx, "ev")
	require.NoError(t, err)
	ev.Zones[0].AvailableSeats = 100

	again, err := s.GetEvent(ctx, "ev")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Zones[0].AvailableSeats)
}
