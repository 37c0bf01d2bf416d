package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
)

// Identity returns the identity stored by JWTAuth.
func Identity(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(identityKey).(identity.Identity)
	return id, ok
}

// userID returns the authenticated user id, or "anon" before JWTAuth ran.
func userID(c echo.Context) string {
	if v, ok := c.Get(userIDKey).(string); ok && v != "" {
		return v
	}
	return "anon"
}
