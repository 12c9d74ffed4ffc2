// Package repository is the durable side of the booking pipeline: events
// with their zone stock counters, ticket rows and booking records.  Every
// mutation that other callers race on is a single conditional statement
// whose affected-row count is reported back, so callers can tell a lost
// race from success.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// ErrDuplicate is returned when an insert collides with an existing row,
// for example a second event with the same ID or a seat number created
// twice for the same zone.  Handlers should translate it into a 409.
var ErrDuplicate = fmt.Errorf("%w: duplicate record", model.ErrConflict)

// ErrEmptyFilter is returned by UpdateTicketStatus when the filter does
// not name an event.  An unscoped bulk update is never intended.
var ErrEmptyFilter = fmt.Errorf("%w: ticket filter must name an event", model.ErrInvalid)

// ErrTicketTransition is returned by UpdateTicketStatus for a status move
// the ticket lifecycle does not allow, such as sold back to available.
var ErrTicketTransition = fmt.Errorf("%w: illegal ticket transition", model.ErrInvalid)

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the repository sentinels and wraps
// everything else as internal.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return model.Internal(op, err)
}
