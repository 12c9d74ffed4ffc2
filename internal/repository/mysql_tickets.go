package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// insertChunk bounds the rows per INSERT so the statement stays well
// below the server's placeholder limit.
const insertChunk = 500

const ticketColumns = `id, event_id, zone_id, zone_name, seat_number, status, owner_id, reserved_at`

// where renders the filter as a WHERE clause.  List fields are expanded
// by sqlx.In afterwards.
func (f TicketFilter) where(status model.TicketStatus) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	add("event_id = ?", f.EventID)
	if f.ZoneName != "" {
		add("zone_name = ?", f.ZoneName)
	}
	if len(f.TicketIDs) > 0 {
		add("id IN (?)", f.TicketIDs)
	}
	if len(f.SeatNumbers) > 0 {
		add("seat_number IN (?)", f.SeatNumbers)
	}
	if status != "" {
		add("status = ?", status)
	}
	if f.OwnerID != nil {
		add("owner_id = ?", *f.OwnerID)
	}
	if f.ReservedAt != nil {
		add("reserved_at = ?", f.ReservedAt.UTC())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindTickets returns the tickets matching f, at most f.Limit when set.
func (s *MySQLStore) FindTickets(ctx context.Context, f TicketFilter) ([]model.Ticket, error) {
	where, args := f.where(f.Status)
	q := `SELECT ` + ticketColumns + ` FROM tickets` + where
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, model.Internal("expand ticket query", err)
	}
	var out []model.Ticket
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, translate("find tickets", err)
	}
	return out, nil
}

// UpdateTicketStatus is a conditional bulk compare-and-set: rows whose
// status is no longer from are left alone and not counted.
func (s *MySQLStore) UpdateTicketStatus(ctx context.Context, f TicketFilter, from, to model.TicketStatus, owner *string, at time.Time) (int64, error) {
	if f.EventID == "" {
		return 0, ErrEmptyFilter
	}
	if !from.CanTransition(to) {
		return 0, fmt.Errorf("%s to %s: %w", from, to, ErrTicketTransition)
	}
	var set string
	var args []any
	switch to {
	case model.TicketReserved:
		set = `status = ?, owner_id = ?, reserved_at = ?`
		args = []any{to, owner, at.UTC()}
	case model.TicketAvailable:
		set = `status = ?, owner_id = NULL, reserved_at = NULL`
		args = []any{to}
	default:
		set = `status = ?`
		args = []any{to}
	}
	where, wargs := f.where(from)
	q := `UPDATE tickets SET ` + set + where
	args = append(args, wargs...)
	if f.Limit > 0 {
		// Rows are locked as they are claimed, so concurrent limited
		// updates never hand out the same row twice.
		q += " ORDER BY id LIMIT ?"
		args = append(args, f.Limit)
	}
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return 0, model.Internal("expand ticket update", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return 0, translate("update ticket status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("update ticket status", err)
	}
	return n, nil
}

// insertTickets bulk inserts ticket rows in chunks inside tx.
func insertTickets(ctx context.Context, tx *sqlx.Tx, tickets []model.Ticket) error {
	const q = `INSERT INTO tickets (` + ticketColumns + `)
	           VALUES (:id, :event_id, :zone_id, :zone_name, :seat_number, :status, :owner_id, :reserved_at)`
	for start := 0; start < len(tickets); start += insertChunk {
		end := min(start+insertChunk, len(tickets))
		if _, err := tx.NamedExecContext(ctx, q, tickets[start:end]); err != nil {
			return translate("insert tickets", err)
		}
	}
	return nil
}
