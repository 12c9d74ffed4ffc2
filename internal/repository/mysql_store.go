package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// MySQLStore implements Store on top of the schema created by
// database.InitializeSchema.
type MySQLStore struct {
	db *sqlx.DB
}

// NewMySQLStore returns a MySQLStore bound to the provided database.
func NewMySQLStore(db *sqlx.DB) *MySQLStore { return &MySQLStore{db: db} }

// GetEvent loads the event row and all of its zones.
func (s *MySQLStore) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	var ev model.Event
	err := s.db.GetContext(ctx, &ev, `SELECT id, title, date FROM events WHERE id = ?`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, translate("get event", err)
	}
	const q = `SELECT id, event_id, name, price, total_seats, available_seats, type
	           FROM zones WHERE event_id = ? ORDER BY name`
	if err := s.db.SelectContext(ctx, &ev.Zones, q, eventID); err != nil {
		return nil, translate("get zones", err)
	}
	return &ev, nil
}

// CreateEvent inserts the event, its zones and its tickets in one
// transaction.
func (s *MySQLStore) CreateEvent(ctx context.Context, ev *model.Event, tickets []model.Ticket) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return translate("begin create event", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO events (id, title, date) VALUES (?, ?, ?)`,
		ev.ID, ev.Title, ev.Date.UTC()); err != nil {
		return translate("insert event", err)
	}
	for i := range ev.Zones {
		z := &ev.Zones[i]
		z.EventID = ev.ID
		z.AvailableSeats = z.TotalSeats
		const q = `INSERT INTO zones (id, event_id, name, price, total_seats, available_seats, type)
		           VALUES (:id, :event_id, :name, :price, :total_seats, :available_seats, :type)`
		if _, err := tx.NamedExecContext(ctx, q, z); err != nil {
			return translate(fmt.Sprintf("insert zone %q", z.Name), err)
		}
	}
	if err := insertTickets(ctx, tx, tickets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate("commit create event", err)
	}
	committed = true
	return nil
}

// DecrementZoneStock is the overbooking guard: the sufficiency check and
// the subtraction happen in the same statement.
func (s *MySQLStore) DecrementZoneStock(ctx context.Context, eventID, zoneID string, qty int) (bool, error) {
	const q = `UPDATE zones SET available_seats = available_seats - ?
	           WHERE id = ? AND event_id = ? AND available_seats >= ?`
	return s.execOne(ctx, "decrement zone stock", q, qty, zoneID, eventID, qty)
}

// IncrementZoneStock returns seats to a zone without exceeding its total.
func (s *MySQLStore) IncrementZoneStock(ctx context.Context, eventID, zoneID string, qty int) (bool, error) {
	const q = `UPDATE zones SET available_seats = available_seats + ?
	           WHERE id = ? AND event_id = ? AND available_seats + ? <= total_seats`
	return s.execOne(ctx, "increment zone stock", q, qty, zoneID, eventID, qty)
}

func (s *MySQLStore) execOne(ctx context.Context, op, q string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, translate(op, err)
	}
	return n == 1, nil
}
