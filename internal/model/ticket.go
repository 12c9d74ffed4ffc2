package model

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a single allocatable unit.
type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketSold      TicketStatus = "sold"
)

// CanTransition reports whether a ticket may move from s to next.
// Allowed moves are available→reserved, reserved→sold and
// reserved→available.  Sold is terminal.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketAvailable:
		return next == TicketReserved
	case TicketReserved:
		return next == TicketSold || next == TicketAvailable
	}
	return false
}

// Ticket is one row per seat (seated zones) or per pooled unit
// (standing zones).  OwnerID and ReservedAt are set while the ticket is
// reserved or sold and cleared when a reservation is released.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event the ticket belongs to.
//  ZoneID     – zone the ticket belongs to.
//  ZoneName   – denormalised zone name used by lookups.
//  SeatNumber – stable seat identity, or a synthetic pool identity.
//  Status     – available, reserved or sold.
//  OwnerID    – user holding the ticket (nullable).
//  ReservedAt – when the current reservation was taken (nullable).
type Ticket struct {
	ID         string       `json:"id" db:"id"`                   // tickets.id
	EventID    string       `json:"event_id" db:"event_id"`       // tickets.event_id
	ZoneID     string       `json:"zone_id" db:"zone_id"`         // tickets.zone_id
	ZoneName   string       `json:"zone_name" db:"zone_name"`     // tickets.zone_name
	SeatNumber string       `json:"seat_number" db:"seat_number"` // tickets.seat_number
	Status     TicketStatus `json:"status" db:"status"`           // tickets.status
	OwnerID    *string      `json:"owner_id" db:"owner_id"`       // tickets.owner_id (nullable)
	ReservedAt *time.Time   `json:"reserved_at" db:"reserved_at"` // tickets.reserved_at (nullable)
}

// SeatLabel builds the seat identity of the n-th (1-based) ticket of a
// zone.  Seated zones use the zone name followed by the seat number
// ("A12"); standing zones get a pool identity ("GA-P12").
func SeatLabel(zone Zone, n int) string {
	if zone.Type == ZoneStanding {
		return fmt.Sprintf("%s-P%d", zone.Name, n)
	}
	return fmt.Sprintf("%s%d", zone.Name, n)
}
