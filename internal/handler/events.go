package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// EventStore creates events and reads their stock.
type EventStore interface {
	Create(ctx context.Context, ev *model.Event) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
}

type EventHandler struct {
	events EventStore
	logger *zap.SugaredLogger
}

func NewEventHandler(events EventStore, logger *zap.Logger) *EventHandler {
	if events == nil || logger == nil {
		panic("nil dependency passed to NewEventHandler")
	}
	return &EventHandler{events: events, logger: logger.Sugar()}
}

// Create handles POST /v1/events.  The body is an event with its zones;
// tickets are generated for every unit of capacity.
func (h *EventHandler) Create(c echo.Context) error {
	var ev model.Event
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	out, err := h.events.Create(c.Request().Context(), &ev)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	ev, err := h.events.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, ev)
}
