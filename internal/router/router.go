package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/middleware"
)

// Deps carries what the routes need.  Limiter may be nil to disable
// rate limiting.
type Deps struct {
	Bookings     *handler.BookingHandler
	Events       *handler.EventHandler
	Queue        handler.QueueState
	JWTSecret    string
	ConfirmRoles []string
	AdminRoles   []string
	Limiter      echo.MiddlewareFunc
}

// RegisterRoutes registers unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, q handler.QueueState) {
	e.GET("/healthz", handler.Health(q))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterBookings registers the booking and event API under /v1.
func RegisterBookings(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Queue)

	e.GET("/v1/events/:id", d.Events.Get)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))

	create := []echo.MiddlewareFunc{}
	if d.Limiter != nil {
		create = append(create, d.Limiter)
	}
	auth.POST("/bookings", d.Bookings.Create, create...)
	auth.GET("/bookings/status/:trackingId", d.Bookings.Status)
	auth.PATCH("/bookings/:id/status", d.Bookings.UpdateStatus, middleware.RequireRole(d.ConfirmRoles...))

	auth.POST("/events", d.Events.Create, middleware.RequireRole(d.AdminRoles...))
}
