package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// EventService sets up events for sale: it stores the event with its
// zone counters and creates one available ticket per unit of capacity.
type EventService struct {
	store repository.Store
	alloc *Allocator
}

func NewEventService(store repository.Store, alloc *Allocator) *EventService {
	return &EventService{store: store, alloc: alloc}
}

// Create validates ev, assigns missing IDs and stores it with its
// tickets.  A failure leaves nothing behind.
func (s *EventService) Create(ctx context.Context, ev *model.Event) (*model.Event, error) {
	if strings.TrimSpace(ev.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrInvalid)
	}
	if ev.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", model.ErrInvalid)
	}
	if len(ev.Zones) == 0 {
		return nil, fmt.Errorf("%w: at least one zone is required", model.ErrInvalid)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	seen := make(map[string]bool, len(ev.Zones))
	for i := range ev.Zones {
		z := &ev.Zones[i]
		switch {
		case strings.TrimSpace(z.Name) == "":
			return nil, fmt.Errorf("%w: zone name is required", model.ErrInvalid)
		case seen[z.Name]:
			return nil, fmt.Errorf("%w: duplicate zone %q", model.ErrInvalid, z.Name)
		case z.TotalSeats <= 0:
			return nil, fmt.Errorf("%w: zone %q needs a positive capacity", model.ErrInvalid, z.Name)
		case z.Price < 0:
			return nil, fmt.Errorf("%w: zone %q has a negative price", model.ErrInvalid, z.Name)
		case z.Type == "":
			z.Type = model.ZoneSeated
		case !z.Type.Valid():
			return nil, fmt.Errorf("%w: zone %q has unknown type %q", model.ErrInvalid, z.Name, z.Type)
		}
		seen[z.Name] = true
		if z.ID == "" {
			z.ID = uuid.NewString()
		}
	}
	if _, err := s.alloc.BulkCreate(ctx, ev); err != nil {
		return nil, err
	}
	return s.store.GetEvent(ctx, ev.ID)
}

// Get returns an event with its current zone stock.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.store.GetEvent(ctx, id)
}
