package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// UserID returns the authenticated user identifier stored by JWTAuth, or
// "" when the request is anonymous.  Numeric subjects are rendered in
// decimal.
func UserID(c echo.Context) string {
	return claimString(c.Get(ContextUserID))
}

// Role returns the role claim stored by JWTAuth.
func Role(c echo.Context) string {
	return claimString(c.Get(ContextRole))
}

func claimString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
