package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// testStoreContract runs the behaviour every Store implementation shares.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	buildTickets := func(ev *model.Event) []model.Ticket {
		var tickets []model.Ticket
		for _, zone := range ev.Zones {
			for n := 1; n <= zone.TotalSeats; n++ {
				tickets = append(tickets, model.Ticket{
					ID:         uuid.NewString(),
					EventID:    ev.ID,
					ZoneID:     zone.ID,
					ZoneName:   zone.Name,
					SeatNumber: model.SeatLabel(zone, n),
					Status:     model.TicketAvailable,
				})
			}
		}
		return tickets
	}

	// newEvent stores an event with a seated zone A and a standing zone
	// GA of the given size and returns each zone's tickets by name.
	newEvent := func(t *testing.T, seats int) (*model.Event, map[string][]model.Ticket) {
		t.Helper()
		ev := &model.Event{
			ID:    uuid.NewString(),
			Title: "Concert",
			Date:  time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond),
			Zones: []model.Zone{
				{ID: uuid.NewString(), Name: "A", Price: 1500, TotalSeats: seats, Type: model.ZoneSeated},
				{ID: uuid.NewString(), Name: "GA", Price: 500, TotalSeats: seats, Type: model.ZoneStanding},
			},
		}
		tickets := buildTickets(ev)
		require.NoError(t, store.CreateEvent(ctx, ev, tickets))
		byZone := make(map[string][]model.Ticket)
		for _, tk := range tickets {
			byZone[tk.ZoneName] = append(byZone[tk.ZoneName], tk)
		}
		return ev, byZone
	}

	t.Run("event round trip", func(t *testing.T) {
		ev, _ := newEvent(t, 3)
		got, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, ev.Title, got.Title)
		assert.WithinDuration(t, ev.Date, got.Date, time.Millisecond)
		require.Len(t, got.Zones, 2)
		a := got.ZoneByName("A")
		require.NotNil(t, a)
		assert.Equal(t, 3, a.AvailableSeats)
		assert.Equal(t, model.ZoneSeated, a.Type)

		tickets, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, Status: model.TicketAvailable})
		require.NoError(t, err)
		assert.Len(t, tickets, 6)
	})

	t.Run("event create is all or nothing", func(t *testing.T) {
		_, existing := newEvent(t, 1)
		ev := &model.Event{
			ID:    uuid.NewString(),
			Title: "Half written",
			Date:  time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
			Zones: []model.Zone{{ID: uuid.NewString(), Name: "A", TotalSeats: 2, Type: model.ZoneSeated}},
		}
		tickets := buildTickets(ev)
		// The second ticket collides with a row of another event, so the
		// ticket insert fails after the event and zone rows went in.
		tickets[1].ID = existing["A"][0].ID

		err := store.CreateEvent(ctx, ev, tickets)
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = store.GetEvent(ctx, ev.ID)
		assert.ErrorIs(t, err, model.ErrEventNotFound)
		left, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID})
		require.NoError(t, err)
		assert.Empty(t, left)
	})

	t.Run("missing event", func(t *testing.T) {
		_, err := store.GetEvent(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrEventNotFound)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("duplicate event", func(t *testing.T) {
		ev, _ := newEvent(t, 1)
		dup := *ev
		dup.Zones = []model.Zone{{ID: uuid.NewString(), Name: "B", TotalSeats: 1, Type: model.ZoneSeated}}
		err := store.CreateEvent(ctx, &dup, nil)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("stock is conditional", func(t *testing.T) {
		ev, _ := newEvent(t, 2)
		zoneID := ev.Zones[0].ID

		ok, err := store.DecrementZoneStock(ctx, ev.ID, zoneID, 3)
		require.NoError(t, err)
		assert.False(t, ok, "decrement beyond stock must not apply")

		ok, err = store.DecrementZoneStock(ctx, ev.ID, zoneID, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.DecrementZoneStock(ctx, ev.ID, zoneID, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.IncrementZoneStock(ctx, ev.ID, zoneID, 3)
		require.NoError(t, err)
		assert.False(t, ok, "increment past total must not apply")

		ok, err = store.IncrementZoneStock(ctx, ev.ID, zoneID, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ZoneByID(zoneID).AvailableSeats)
	})

	t.Run("ticket compare and set", func(t *testing.T) {
		ev, byZone := newEvent(t, 4)
		tickets := byZone["A"]
		ids := []string{tickets[0].ID, tickets[1].ID}
		alice, bob := "alice", "bob"
		at := time.Now().UTC().Truncate(time.Microsecond)

		n, err := store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: ids},
			model.TicketAvailable, model.TicketReserved, &alice, at)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: []string{tickets[1].ID, tickets[2].ID}},
			model.TicketAvailable, model.TicketReserved, &bob, at.Add(time.Millisecond))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "only the still-available ticket moves")

		mine, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, OwnerID: &alice, ReservedAt: &at})
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, []string{mine[0].ID, mine[1].ID})
		for _, tk := range mine {
			assert.Equal(t, model.TicketReserved, tk.Status)
			require.NotNil(t, tk.ReservedAt)
			assert.True(t, at.Equal(*tk.ReservedAt))
		}

		// Release scoped to alice's attempt leaves bob's ticket alone.
		n, err = store.UpdateTicketStatus(ctx,
			TicketFilter{EventID: ev.ID, TicketIDs: []string{tickets[1].ID, tickets[2].ID}, OwnerID: &alice, ReservedAt: &at},
			model.TicketReserved, model.TicketAvailable, nil, time.Time{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		avail, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, ZoneName: "A", Status: model.TicketAvailable})
		require.NoError(t, err)
		assert.Len(t, avail, 2)
		for _, tk := range avail {
			assert.Nil(t, tk.OwnerID)
			assert.Nil(t, tk.ReservedAt)
		}

		n, err = store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, SeatNumbers: []string{"A1", "A2"}},
			model.TicketReserved, model.TicketSold, nil, time.Time{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "A2 was released and must not be sold")

		n, err = store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, SeatNumbers: []string{"A1"}},
			model.TicketReserved, model.TicketAvailable, nil, time.Time{})
		require.NoError(t, err)
		assert.Zero(t, n, "sold is terminal")
	})

	t.Run("illegal transitions refused", func(t *testing.T) {
		ev, byZone := newEvent(t, 1)
		id := byZone["A"][0].ID
		owner := "u1"
		cases := []struct{ from, to model.TicketStatus }{
			{model.TicketSold, model.TicketAvailable},
			{model.TicketSold, model.TicketReserved},
			{model.TicketAvailable, model.TicketSold},
			{model.TicketAvailable, model.TicketAvailable},
		}
		for _, c := range cases {
			n, err := store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: []string{id}},
				c.from, c.to, &owner, time.Now())
			assert.ErrorIs(t, err, ErrTicketTransition, "%s to %s", c.from, c.to)
			assert.ErrorIs(t, err, model.ErrInvalid)
			assert.Zero(t, n)
		}
		got, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, TicketIDs: []string{id}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.TicketAvailable, got[0].Status)
	})

	t.Run("find with limit", func(t *testing.T) {
		ev, _ := newEvent(t, 5)
		got, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, ZoneName: "GA", Status: model.TicketAvailable, Limit: 3})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("update with limit", func(t *testing.T) {
		ev, _ := newEvent(t, 5)
		alice, bob := "alice", "bob"
		at := time.Now().UTC().Truncate(time.Microsecond)
		pool := TicketFilter{EventID: ev.ID, ZoneName: "GA", Limit: 3}

		n, err := store.UpdateTicketStatus(ctx, pool, model.TicketAvailable, model.TicketReserved, &alice, at)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		n, err = store.UpdateTicketStatus(ctx, pool, model.TicketAvailable, model.TicketReserved, &bob, at.Add(time.Microsecond))
		require.NoError(t, err)
		assert.EqualValues(t, 2, n, "only the rows alice did not claim are left")

		mine, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, ZoneName: "GA", OwnerID: &alice, Status: model.TicketReserved})
		require.NoError(t, err)
		theirs, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, ZoneName: "GA", OwnerID: &bob, Status: model.TicketReserved})
		require.NoError(t, err)
		assert.Len(t, mine, 3)
		assert.Len(t, theirs, 2)
	})

	t.Run("unscoped update refused", func(t *testing.T) {
		_, err := store.UpdateTicketStatus(ctx, TicketFilter{}, model.TicketAvailable, model.TicketSold, nil, time.Time{})
		assert.ErrorIs(t, err, ErrEmptyFilter)
	})

	t.Run("booking lifecycle", func(t *testing.T) {
		ev, byZone := newEvent(t, 2)
		tickets := byZone["A"]
		now := time.Now().UTC().Truncate(time.Microsecond)
		b := &model.Booking{
			ID:         uuid.NewString(),
			UserID:     "u1",
			EventID:    ev.ID,
			ZoneID:     ev.Zones[0].ID,
			ZoneName:   "A",
			Quantity:   2,
			TotalPrice: 3000,
			Status:     model.BookingPending,
			TicketIDs:  []string{tickets[0].ID, tickets[1].ID},
			ExpiresAt:  now.Add(time.Minute),
			CreatedAt:  now,
		}
		require.NoError(t, store.InsertBooking(ctx, b))

		got, err := store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingPending, got.Status)
		assert.ElementsMatch(t, b.TicketIDs, got.TicketIDs)
		assert.WithinDuration(t, b.ExpiresAt, got.ExpiresAt, time.Millisecond)

		pending, err := store.ListBookingsByStatus(ctx, model.BookingPending)
		require.NoError(t, err)
		found := false
		for _, p := range pending {
			if p.ID == b.ID {
				found = true
				assert.Len(t, p.TicketIDs, 2)
			}
		}
		assert.True(t, found, fmt.Sprintf("booking %s not listed", b.ID))

		ok, err := store.UpdateBookingStatus(ctx, b.ID, model.BookingPending, model.BookingConfirmed)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = store.UpdateBookingStatus(ctx, b.ID, model.BookingPending, model.BookingCancelled)
		require.NoError(t, err)
		assert.False(t, ok, "second transition out of pending must lose")

		_, err = store.GetBooking(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrBookingNotFound)
	})

	t.Run("cancel booking returns tickets and stock", func(t *testing.T) {
		ev, byZone := newEvent(t, 3)
		zone := ev.Zones[0]
		tickets := byZone["A"]
		user, other := "u1", "u2"
		at := time.Now().UTC().Truncate(time.Microsecond)
		mine := []string{tickets[0].ID, tickets[1].ID}

		n, err := store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: mine},
			model.TicketAvailable, model.TicketReserved, &user, at)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
		ok, err := store.DecrementZoneStock(ctx, ev.ID, zone.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		b := &model.Booking{
			ID: uuid.NewString(), UserID: user, EventID: ev.ID, ZoneID: zone.ID, ZoneName: zone.Name,
			Quantity: 2, Status: model.BookingPending, TicketIDs: mine,
			ExpiresAt: at.Add(time.Minute), CreatedAt: at,
		}
		require.NoError(t, store.InsertBooking(ctx, b))

		// Someone else took the second seat over in the meantime; it
		// must stay theirs.
		n, err = store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: mine[1:]},
			model.TicketReserved, model.TicketAvailable, nil, time.Time{})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		n, err = store.UpdateTicketStatus(ctx, TicketFilter{EventID: ev.ID, TicketIDs: mine[1:]},
			model.TicketAvailable, model.TicketReserved, &other, at)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		ok, err = store.CancelBooking(ctx, b)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, got.Status)
		rows, err := store.FindTickets(ctx, TicketFilter{EventID: ev.ID, TicketIDs: mine})
		require.NoError(t, err)
		status := map[string]model.TicketStatus{}
		for _, r := range rows {
			status[r.ID] = r.Status
		}
		assert.Equal(t, model.TicketAvailable, status[mine[0]])
		assert.Equal(t, model.TicketReserved, status[mine[1]])
		evNow, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, evNow.ZoneByID(zone.ID).AvailableSeats)

		ok, err = store.CancelBooking(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok, "a booking is cancelled once")
		evNow, err = store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, evNow.ZoneByID(zone.ID).AvailableSeats)
	})
}
