package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// Admitter accepts booking requests and reports on them.
type Admitter interface {
	Enqueue(userID string, req service.BookingRequest) (queue.Admission, error)
	StatusFor(trackingID, userID string) queue.StatusView
}

// BookingUpdater applies external status changes to pending bookings.
type BookingUpdater interface {
	Confirm(ctx context.Context, bookingID string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*model.Booking, error)
}

// BookingHandler serves the asynchronous booking API.  Requests are
// admitted immediately and polled by tracking ID.
type BookingHandler struct {
	queue   Admitter
	updates BookingUpdater
	logger  *zap.SugaredLogger
}

// NewBookingHandler panics if a dependency is nil.
func NewBookingHandler(q Admitter, updates BookingUpdater, logger *zap.Logger) *BookingHandler {
	if q == nil || updates == nil || logger == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{queue: q, updates: updates, logger: logger.Sugar()}
}

// Create handles POST /v1/bookings.  The body is a BookingRequest.  It
// answers 202 with the tracking ID and queue position; the outcome is
// read later from Status.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	adm, err := h.queue.Enqueue(userID, req)
	if errors.Is(err, queue.ErrShuttingDown) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	}
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusAccepted, adm)
}

// Status handles GET /v1/bookings/status/:trackingId.  Users only see
// their own requests; any other ID reads as not_found.
func (h *BookingHandler) Status(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, h.queue.StatusFor(c.Param("trackingId"), userID))
}

// UpdateStatus handles PATCH /v1/bookings/:id/status with a body of
// {"status": "confirmed"|"cancelled"}.  It is meant for the payment
// flow and is guarded by role.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status model.BookingStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx := c.Request().Context()
	var (
		b   *model.Booking
		err error
	)
	switch body.Status {
	case model.BookingConfirmed:
		b, err = h.updates.Confirm(ctx, id)
	case model.BookingCancelled:
		b, err = h.updates.Cancel(ctx, id)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be confirmed or cancelled"})
	}
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, b)
}
