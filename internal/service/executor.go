package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/schedule"
)

const defaultBookingTTL = 5 * time.Minute

// expireRetryDelay is how long a failed expiry waits before it is tried
// again.
const expireRetryDelay = 5 * time.Second

// Cancellation reasons carried by booking.cancelled events.
const (
	ReasonExpired   = "expired"
	ReasonCancelled = "cancelled"
)

// Notifier receives booking state changes after they are committed.
// Notification failures are logged and never undo the change.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	BookingCancelled(ctx context.Context, b *model.Booking, reason string) error
}

type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(context.Context, *model.Booking) error         { return nil }
func (nopNotifier) BookingCancelled(context.Context, *model.Booking, string) error { return nil }

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBookingTTL sets how long a pending booking waits for confirmation.
func WithBookingTTL(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.ttl = d
		}
	}
}

// WithClock replaces time.Now for the executor and its expiry reaper.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithNotifier sets where confirm and cancel events go.
func WithNotifier(n Notifier) ExecutorOption {
	return func(e *Executor) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l.Sugar() }
}

// WithReapInterval sets how often expired bookings are looked for.
func WithReapInterval(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.reapEvery = d }
}

// Executor runs one booking attempt end to end and owns the lifecycle of
// the bookings it creates: confirmation, cancellation and expiry.
//
// Ticket rows and the zone counter always move together.  Any failure
// after tickets were reserved releases them before the error is
// returned.
type Executor struct {
	store     repository.Store
	alloc     *Allocator
	notifier  Notifier
	expiry    *schedule.Scheduler
	ttl       time.Duration
	reapEvery time.Duration
	now       func() time.Time
	logger    *zap.SugaredLogger

	stampMu   sync.Mutex
	lastStamp time.Time
}

// NewExecutor wires an Executor to the store.  Call RunExpiry to start
// the expiry reaper.
func NewExecutor(store repository.Store, alloc *Allocator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:     store,
		alloc:     alloc,
		notifier:  nopNotifier{},
		ttl:       defaultBookingTTL,
		reapEvery: time.Second,
		now:       time.Now,
		logger:    zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(e)
	}
	alloc.now = e.now
	e.expiry = schedule.New(e.onDeadline,
		schedule.WithClock(e.now),
		schedule.WithInterval(e.reapEvery),
		schedule.WithLogger(e.logger),
	)
	return e
}

// Execute validates the request, reserves tickets, takes the stock and
// persists a pending booking armed to expire after the booking TTL.
func (e *Executor) Execute(ctx context.Context, userID string, req BookingRequest) (*model.Booking, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", model.ErrInvalid)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := e.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	at := e.stamp()
	if !ev.Date.After(at) {
		return nil, model.ErrEventStarted
	}
	zone := ev.ZoneByName(req.ZoneName)
	if zone == nil {
		return nil, model.ErrZoneNotFound
	}
	if err := req.checkSeats(zone); err != nil {
		return nil, err
	}
	// Cached counter; the conditional decrement below is the real guard.
	if zone.AvailableSeats < req.Quantity {
		return nil, model.ErrInsufficientStock
	}

	ids, err := e.reserve(ctx, ev.ID, zone, req, userID, at)
	if err != nil {
		return nil, err
	}

	ok, err := e.store.DecrementZoneStock(ctx, ev.ID, zone.ID, req.Quantity)
	if err != nil {
		return nil, e.rollback(ctx, "decrement", ev.ID, ids, userID, at, nil, fmt.Errorf("decrement stock: %w", err))
	}
	if !ok {
		return nil, e.rollback(ctx, "decrement", ev.ID, ids, userID, at, nil, model.ErrInsufficientStock)
	}

	b := &model.Booking{
		ID:         uuid.NewString(),
		UserID:     userID,
		EventID:    ev.ID,
		ZoneID:     zone.ID,
		ZoneName:   zone.Name,
		Quantity:   req.Quantity,
		TotalPrice: zone.Price * int64(req.Quantity),
		Status:     model.BookingPending,
		TicketIDs:  ids,
		ExpiresAt:  at.Add(e.ttl),
		CreatedAt:  at,
	}
	if err := e.store.InsertBooking(ctx, b); err != nil {
		return nil, e.rollback(ctx, "persist", ev.ID, ids, userID, at, zone, fmt.Errorf("persist booking: %w", err))
	}
	e.expiry.Schedule(b.ID, b.ExpiresAt)
	e.logger.Infof("booking %s created for user %s: %d x %s/%s", b.ID, userID, b.Quantity, ev.ID, zone.Name)
	return b, nil
}

// stamp returns a reservation timestamp unique to this attempt.  It is
// stored with microsecond precision, so two attempts never share one.
func (e *Executor) stamp() time.Time {
	e.stampMu.Lock()
	defer e.stampMu.Unlock()
	at := e.now().UTC().Truncate(time.Microsecond)
	if !at.After(e.lastStamp) {
		at = e.lastStamp.Add(time.Microsecond)
	}
	e.lastStamp = at
	return at
}

// reserve takes the request's tickets for owner under the attempt stamp
// at and returns their IDs.  Standing zones claim any free rows in one
// step; seated zones compare-and-set the named seats.  Nothing stays
// reserved when it fails.
func (e *Executor) reserve(ctx context.Context, eventID string, zone *model.Zone, req BookingRequest, owner string, at time.Time) ([]string, error) {
	if zone.Type == model.ZoneStanding {
		tickets, err := e.alloc.ClaimPool(ctx, eventID, zone.Name, req.Quantity, owner, at)
		if err != nil {
			return nil, e.rollback(ctx, "reserve", eventID, nil, owner, at, nil, fmt.Errorf("claim pool tickets: %w", err))
		}
		ids := lo.Map(tickets, func(t model.Ticket, _ int) string { return t.ID })
		if len(ids) < req.Quantity {
			return nil, e.rollback(ctx, "reserve", eventID, ids, owner, at, nil, model.ErrInsufficientStock)
		}
		return ids, nil
	}

	tickets, err := e.alloc.FindSpecific(ctx, eventID, zone.Name, req.SeatNumbers)
	if err != nil {
		return nil, fmt.Errorf("find seats: %w", err)
	}
	if len(tickets) != req.Quantity {
		return nil, model.ErrSeatsUnavailable
	}
	ids := lo.Map(tickets, func(t model.Ticket, _ int) string { return t.ID })
	n, err := e.alloc.ReserveAt(ctx, eventID, ids, &owner, at)
	if err != nil {
		return nil, e.rollback(ctx, "reserve", eventID, ids, owner, at, nil, fmt.Errorf("reserve tickets: %w", err))
	}
	if n < int64(len(ids)) {
		return nil, e.rollback(ctx, "reserve", eventID, ids, owner, at, nil, model.ErrTicketsLost)
	}
	return ids, nil
}

// rollback releases the tickets this attempt reserved and, when zone is
// set, returns the stock it took.  It runs even if ctx is cancelled.
// Cleanup failures are joined onto cause.
func (e *Executor) rollback(ctx context.Context, stage, eventID string, ids []string, owner string, at time.Time, zone *model.Zone, cause error) error {
	ctx = context.WithoutCancel(ctx)
	metrics.Rollbacks.WithLabelValues(stage).Inc()
	errs := []error{cause}
	if _, err := e.alloc.ReleaseAttempt(ctx, eventID, ids, owner, at); err != nil {
		errs = append(errs, fmt.Errorf("release tickets: %w", err))
	}
	if zone != nil {
		if ok, err := e.store.IncrementZoneStock(ctx, eventID, zone.ID, len(ids)); err != nil {
			errs = append(errs, fmt.Errorf("return stock: %w", err))
		} else if !ok {
			e.logger.Warnf("zone %s/%s refused returned stock of %d", eventID, zone.Name, len(ids))
		}
	}
	if len(errs) > 1 {
		e.logger.Errorf("rollback after %s failed for user %s: %v", stage, owner, errs[1:])
	}
	return errors.Join(errs...)
}

// Confirm settles a pending booking after external payment: its tickets
// become sold and its expiry deadline is dropped.
func (e *Executor) Confirm(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	ok, err := e.store.UpdateBookingStatus(ctx, b.ID, model.BookingPending, model.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("confirm booking %s: %w", b.ID, model.ErrBookingState)
	}
	e.expiry.Cancel(b.ID)
	b.Status = model.BookingConfirmed

	tickets, err := e.store.FindTickets(ctx, repository.TicketFilter{EventID: b.EventID, TicketIDs: b.TicketIDs})
	if err != nil {
		return nil, fmt.Errorf("load booking tickets: %w", err)
	}
	seats := lo.Map(tickets, func(t model.Ticket, _ int) string { return t.SeatNumber })
	sold, err := e.alloc.MarkSold(ctx, b.EventID, b.ZoneName, seats)
	if err != nil {
		return nil, fmt.Errorf("mark tickets sold: %w", err)
	}
	if sold != int64(b.Quantity) {
		e.logger.Warnf("booking %s confirmed but %d of %d tickets moved to sold", b.ID, sold, b.Quantity)
	}
	metrics.Transitions.WithLabelValues(string(model.BookingConfirmed), "payment").Inc()
	if err := e.notifier.BookingConfirmed(ctx, b); err != nil {
		e.logger.Warnf("publish confirmation of %s: %v", b.ID, err)
	}
	return b, nil
}

// Cancel withdraws a pending booking and gives its tickets and stock
// back.  Confirmed bookings cannot be cancelled.
func (e *Executor) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingPending {
		return nil, fmt.Errorf("cancel booking %s: %w", b.ID, model.ErrBookingState)
	}
	if err := e.cancel(ctx, b, ReasonCancelled); err != nil {
		return nil, err
	}
	return b, nil
}

// Expire cancels the booking if it is still pending when its deadline
// passes.  A booking that already left pending is left untouched.
func (e *Executor) Expire(ctx context.Context, bookingID string) error {
	b, err := e.store.GetBooking(ctx, bookingID)
	if errors.Is(err, model.ErrBookingNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status != model.BookingPending {
		return nil
	}
	err = e.cancel(ctx, b, ReasonExpired)
	if errors.Is(err, model.ErrBookingState) {
		return nil
	}
	return err
}

// cancel moves b out of pending and returns its tickets and stock in one
// store transaction.  On failure the booking stays pending and its
// deadline stays armed, so the cancellation can be tried again.
func (e *Executor) cancel(ctx context.Context, b *model.Booking, reason string) error {
	ctx = context.WithoutCancel(ctx)
	ok, err := e.store.CancelBooking(ctx, b)
	if err != nil {
		return fmt.Errorf("cancel booking %s: %w", b.ID, err)
	}
	if !ok {
		return fmt.Errorf("cancel booking %s: %w", b.ID, model.ErrBookingState)
	}
	e.expiry.Cancel(b.ID)
	b.Status = model.BookingCancelled
	metrics.Transitions.WithLabelValues(string(model.BookingCancelled), reason).Inc()
	e.logger.Infof("booking %s cancelled (%s)", b.ID, reason)
	if err := e.notifier.BookingCancelled(ctx, b, reason); err != nil {
		e.logger.Warnf("publish cancellation of %s: %v", b.ID, err)
	}
	return nil
}

// onDeadline expires a booking.  The scheduler has already dropped the
// deadline, so a failed expiry is re-armed instead of being lost.
func (e *Executor) onDeadline(ctx context.Context, bookingID string) {
	if err := e.Expire(ctx, bookingID); err != nil {
		retry := e.now().Add(expireRetryDelay)
		e.logger.Errorf("expire booking %s, retrying at %s: %v", bookingID, retry.Format(time.RFC3339), err)
		e.expiry.Schedule(bookingID, retry)
	}
}

// RestoreExpiries re-arms the deadline of every pending booking.  It is
// called once at startup; deadlines already in the past fire on the
// reaper's next poll.
func (e *Executor) RestoreExpiries(ctx context.Context) (int, error) {
	pending, err := e.store.ListBookingsByStatus(ctx, model.BookingPending)
	if err != nil {
		return 0, fmt.Errorf("list pending bookings: %w", err)
	}
	for _, b := range pending {
		e.expiry.Schedule(b.ID, b.ExpiresAt)
	}
	return len(pending), nil
}

// ExpireDue runs the expiry of every booking whose deadline has passed.
func (e *Executor) ExpireDue(ctx context.Context) int {
	return e.expiry.Fire(ctx)
}

// PendingExpiries returns the number of armed expiry deadlines.
func (e *Executor) PendingExpiries() int {
	return e.expiry.Len()
}

// RunExpiry runs the expiry reaper until ctx is done.
func (e *Executor) RunExpiry(ctx context.Context) error {
	return e.expiry.Run(ctx)
}
