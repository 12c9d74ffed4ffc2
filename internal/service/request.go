package service

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// BookingRequest is what a caller asks for.  SeatNumbers is required
// for seated zones and must name exactly Quantity distinct seats; it
// must be empty for standing zones.
type BookingRequest struct {
	EventID     string   `json:"event_id"`
	ZoneName    string   `json:"zone_name"`
	Quantity    int      `json:"quantity"`
	SeatNumbers []string `json:"seat_numbers,omitempty"`
}

// Validate checks the parts of the request that need no store access.
func (r BookingRequest) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return fmt.Errorf("%w: event_id is required", model.ErrInvalid)
	}
	if strings.TrimSpace(r.ZoneName) == "" {
		return fmt.Errorf("%w: zone_name is required", model.ErrInvalid)
	}
	if r.Quantity <= 0 {
		return model.ErrInvalidQuantity
	}
	if lo.Contains(r.SeatNumbers, "") {
		return fmt.Errorf("%w: empty seat number", model.ErrInvalid)
	}
	return nil
}

// checkSeats enforces the seat rules of the zone type.
func (r BookingRequest) checkSeats(zone *model.Zone) error {
	switch zone.Type {
	case model.ZoneStanding:
		if len(r.SeatNumbers) > 0 {
			return fmt.Errorf("%w: standing zone %q does not take seat numbers", model.ErrInvalid, zone.Name)
		}
	default:
		if len(lo.Uniq(r.SeatNumbers)) != len(r.SeatNumbers) || len(r.SeatNumbers) != r.Quantity {
			return model.ErrSeatSelection
		}
	}
	return nil
}
