package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// QueueState is the part of the admission queue the health check reads.
type QueueState interface {
	Len() int
	Closed() bool
}

// Health reports liveness together with the admission backlog.  It
// answers 503 once the queue stopped accepting work so load balancers
// drain the instance.
func Health(q QueueState) echo.HandlerFunc {
	return func(c echo.Context) error {
		if q.Closed() {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "draining", "queue_depth": q.Len()})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "queue_depth": q.Len()})
	}
}
