package model

import "time"

// ZoneType tells the allocator how tickets in a zone are picked.
type ZoneType string

const (
	// ZoneSeated zones sell specific seats chosen by the customer.
	ZoneSeated ZoneType = "seated"
	// ZoneStanding zones sell interchangeable units from a pool.
	ZoneStanding ZoneType = "standing"
)

// Valid reports whether t is a known zone type.
func (t ZoneType) Valid() bool { return t == ZoneSeated || t == ZoneStanding }

// Event represents something customers can buy tickets for.  The
// capacity of an event is split into zones, each with its own price and
// stock counter.
//
// Fields:
//  ID    – primary key identifier.
//  Title – display name of the event.
//  Date  – when the event takes place; bookings are refused once it passed.
//  Zones – priced subdivisions of the event's capacity.
type Event struct {
	ID    string    `json:"id" db:"id"`       // events.id
	Title string    `json:"title" db:"title"` // events.title
	Date  time.Time `json:"date" db:"date"`   // events.date
	Zones []Zone    `json:"zones" db:"-"`     // zones.event_id = events.id
}

// Zone is a named, priced part of an event.  AvailableSeats is the
// durable stock counter: it is only ever changed through the store's
// conditional increment/decrement and always stays within
// [0, TotalSeats].
type Zone struct {
	ID             string   `json:"id" db:"id"`                           // zones.id
	EventID        string   `json:"event_id" db:"event_id"`               // zones.event_id
	Name           string   `json:"name" db:"name"`                       // zones.name (unique per event)
	Price          int64    `json:"price" db:"price"`                     // zones.price in the smallest currency unit
	TotalSeats     int      `json:"total_seats" db:"total_seats"`         // zones.total_seats
	AvailableSeats int      `json:"available_seats" db:"available_seats"` // zones.available_seats
	Type           ZoneType `json:"type" db:"type"`                       // zones.type
}

// ZoneByName returns the zone with the given name, or nil.
func (e *Event) ZoneByName(name string) *Zone {
	for i := range e.Zones {
		if e.Zones[i].Name == name {
			return &e.Zones[i]
		}
	}
	return nil
}

// ZoneByID returns the zone with the given ID, or nil.
func (e *Event) ZoneByID(id string) *Zone {
	for i := range e.Zones {
		if e.Zones[i].ID == id {
			return &e.Zones[i]
		}
	}
	return nil
}
