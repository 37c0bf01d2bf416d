package middleware // middleware provides the kiosk API's request processing

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
)

// Context keys set by JWTAuth.
const (
	identityKey = "identity"
	userIDKey   = "user_id"
	roleKey     = "role"
)

// JWTAuth reads the Bearer access token, resolves it to an identity and
// stores it in the request context.  The raw token is kept so page
// components can call the booking backend as the same user.  Requests
// without a usable token are rejected with 401.
func JWTAuth(p *identity.Parser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := p.Parse(auth)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			if id.Anonymous() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(identityKey, id)
			c.Set(userIDKey, strconv.FormatInt(id.UserID, 10))
			c.Set(roleKey, id.Role)
			return next(c)
		}
	}
}
