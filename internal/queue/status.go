package queue

import (
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// Status is the caller-facing state of an admitted request.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
	StatusNotFound   Status = "not_found"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// StatusView is what a caller sees when polling a tracking ID.  Every
// view carries a human readable Message; the other fields depend on
// Status:
//
//	processing  RemainingQueue
//	confirmed   BookingID, Booking
//	failed      Reason
//	not_found   nothing
//
// Views are only built through the constructors below.
type StatusView struct {
	TrackingID     string         `json:"tracking_id"`
	Status         Status         `json:"status"`
	RemainingQueue *uint64        `json:"remaining_queue,omitempty"`
	BookingID      string         `json:"booking_id,omitempty"`
	Booking        *model.Booking `json:"booking,omitempty"`
	Reason         model.Kind     `json:"reason,omitempty"`
	Message        string         `json:"message,omitempty"`
}

func processingView(id string, remaining uint64) StatusView {
	msg := "saving your booking"
	if remaining > 0 {
		msg = fmt.Sprintf("waiting in line, %d to go before your turn", remaining)
	}
	return StatusView{TrackingID: id, Status: StatusProcessing, RemainingQueue: &remaining, Message: msg}
}

func confirmedView(id string, b *model.Booking) StatusView {
	cp := *b
	return StatusView{TrackingID: id, Status: StatusConfirmed, BookingID: b.ID, Booking: &cp, Message: "booking confirmed"}
}

func failedView(id string, err error) StatusView {
	return StatusView{TrackingID: id, Status: StatusFailed, Reason: model.KindOf(err), Message: "booking failed: " + err.Error()}
}

func notFoundView(id string) StatusView {
	return StatusView{TrackingID: id, Status: StatusNotFound, Message: "not found or expired"}
}
