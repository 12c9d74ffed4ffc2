package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/iliyamo/ticket-booking/internal/model"
)

const bookingColumns = `id, user_id, event_id, zone_id, zone_name, quantity, total_price, status, expires_at, created_at`

// bookingTicket mirrors a booking_tickets row.
type bookingTicket struct {
	BookingID string `db:"booking_id"`
	TicketID  string `db:"ticket_id"`
}

// InsertBooking writes the booking row and its ticket links together.
func (s *MySQLStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate("begin insert booking", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	row := *b
	row.ExpiresAt = b.ExpiresAt.UTC()
	row.CreatedAt = b.CreatedAt.UTC()
	const q = `INSERT INTO bookings (` + bookingColumns + `)
	           VALUES (:id, :user_id, :event_id, :zone_id, :zone_name, :quantity, :total_price, :status, :expires_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, q, &row); err != nil {
		return translate("insert booking", err)
	}
	if len(b.TicketIDs) > 0 {
		links := lo.Map(b.TicketIDs, func(id string, _ int) bookingTicket {
			return bookingTicket{BookingID: b.ID, TicketID: id}
		})
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO booking_tickets (booking_id, ticket_id) VALUES (:booking_id, :ticket_id)`, links); err != nil {
			return translate("insert booking tickets", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return translate("commit insert booking", err)
	}
	committed = true
	return nil
}

// GetBooking loads a booking and the IDs of its tickets.
func (s *MySQLStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	err := s.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	if err != nil {
		return nil, translate("get booking", err)
	}
	if err := s.db.SelectContext(ctx, &b.TicketIDs,
		`SELECT ticket_id FROM booking_tickets WHERE booking_id = ? ORDER BY ticket_id`, id); err != nil {
		return nil, translate("get booking tickets", err)
	}
	return &b, nil
}

// UpdateBookingStatus is conditional on the current status so that
// confirm, cancel and expiry cannot both win.
func (s *MySQLStore) UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus) (bool, error) {
	return s.execOne(ctx, "update booking status",
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, to, id, from)
}

// CancelBooking claims the booking out of pending and hands its tickets
// and stock back in the same transaction, so a failure leaves the booking
// pending and the next attempt starts over.
func (s *MySQLStore) CancelBooking(ctx context.Context, b *model.Booking) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, translate("begin cancel booking", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		model.BookingCancelled, b.ID, model.BookingPending)
	if err != nil {
		return false, translate("cancel booking", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate("cancel booking", err)
	}
	if n == 0 {
		return false, nil
	}
	const freeTickets = `UPDATE tickets SET status = ?, owner_id = NULL, reserved_at = NULL
	                     WHERE event_id = ? AND status = ? AND owner_id = ?
	                       AND id IN (SELECT ticket_id FROM booking_tickets WHERE booking_id = ?)`
	if _, err := tx.ExecContext(ctx, freeTickets,
		model.TicketAvailable, b.EventID, model.TicketReserved, b.UserID, b.ID); err != nil {
		return false, translate("release booking tickets", err)
	}
	const returnStock = `UPDATE zones SET available_seats = available_seats + ?
	                     WHERE id = ? AND event_id = ? AND available_seats + ? <= total_seats`
	if _, err := tx.ExecContext(ctx, returnStock, b.Quantity, b.ZoneID, b.EventID, b.Quantity); err != nil {
		return false, translate("return booking stock", err)
	}
	if err := tx.Commit(); err != nil {
		return false, translate("commit cancel booking", err)
	}
	committed = true
	return true, nil
}

// ListBookingsByStatus returns every booking in the given status along
// with its ticket IDs.
func (s *MySQLStore) ListBookingsByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	var out []model.Booking
	if err := s.db.SelectContext(ctx, &out,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY expires_at`, status); err != nil {
		return nil, translate("list bookings", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := lo.Map(out, func(b model.Booking, _ int) string { return b.ID })
	q, args, err := sqlx.In(`SELECT booking_id, ticket_id FROM booking_tickets WHERE booking_id IN (?)`, ids)
	if err != nil {
		return nil, model.Internal("expand booking tickets query", err)
	}
	var links []bookingTicket
	if err := s.db.SelectContext(ctx, &links, s.db.Rebind(q), args...); err != nil {
		return nil, translate("list booking tickets", err)
	}
	byBooking := lo.GroupBy(links, func(l bookingTicket) string { return l.BookingID })
	for i := range out {
		for _, l := range byBooking[out[i].ID] {
			out[i].TicketIDs = append(out[i].TicketIDs, l.TicketID)
		}
	}
	return out, nil
}
