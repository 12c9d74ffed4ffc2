// Package model holds the booking domain types shared by the store, the
// booking executor and the admission queue, together with the error
// taxonomy surfaced to callers.
package model

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error produced by the booking pipeline wraps
// exactly one of these so callers can classify it with errors.Is.
var (
	// ErrInvalid marks bad input.  Never retried.
	ErrInvalid = errors.New("invalid request")
	// ErrNotFound marks a missing event, zone or booking.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lost race for stock or tickets.  Expected
	// under load; the caller may submit again.
	ErrConflict = errors.New("conflict")
	// ErrInternal marks store failures and other unexpected errors.
	ErrInternal = errors.New("internal error")
)

var (
	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrZoneNotFound    = fmt.Errorf("zone %w", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)

	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", ErrInvalid)
	ErrEventStarted    = fmt.Errorf("%w: event date has passed", ErrInvalid)
	ErrSeatSelection   = fmt.Errorf("%w: seat selection does not match quantity", ErrInvalid)

	ErrSeatsUnavailable  = fmt.Errorf("%w: some seats are unavailable", ErrConflict)
	ErrTicketsLost       = fmt.Errorf("%w: tickets no longer available", ErrConflict)
	ErrInsufficientStock = fmt.Errorf("%w: not enough seats left in zone", ErrConflict)
	ErrBookingState      = fmt.Errorf("%w: booking is not pending", ErrConflict)
)

// Kind is the caller-facing classification of an error.
type Kind string

const (
	KindInvalid  Kind = "invalid"
	KindNotFound Kind = "not_found"
	KindConflict Kind = "conflict"
	KindInternal Kind = "internal"
)

// KindOf classifies err.  Errors that do not wrap one of the taxonomy
// sentinels are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	}
	return KindInternal
}

// Internal wraps an unexpected error so that it classifies as internal
// while keeping the original error in the chain.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrInternal, err))
}
