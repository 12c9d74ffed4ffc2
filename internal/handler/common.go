package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
)

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(k model.Kind) int {
	switch k {
	case model.KindInvalid:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": message}.  Internal errors are
// logged and hidden from the client.
func writeError(c echo.Context, logger *zap.SugaredLogger, err error) error {
	kind := model.KindOf(err)
	if kind == model.KindInternal {
		logger.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(statusFor(kind), echo.Map{"error": err.Error(), "kind": kind})
}

// getUserID returns the authenticated user or false when JWTAuth stored
// no usable subject.
func getUserID(c echo.Context) (string, bool) {
	uid := middleware.UserID(c)
	return uid, uid != ""
}
