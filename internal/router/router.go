package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/handler"
	"github.com/iliyamo/cinema-seat-checkout/internal/identity"
	"github.com/iliyamo/cinema-seat-checkout/internal/middleware"
)

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, h *handler.PageHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPages registers the customer page routes under /v1.  Every route
// requires a valid access token; seat toggles and checkout hand-offs are
// additionally rate limited per page and user.
func RegisterPages(e *echo.Echo, h *handler.PageHandler, parser *identity.Parser, rl config.RateLimitConfig, rdb *redis.Client) {
	limit := middleware.NewTokenBucket(rl, rdb)
	g := e.Group("/v1", middleware.JWTAuth(parser))

	// ---- Seat selection ----
	g.POST("/pages/seats", h.MountSeats)
	g.GET("/pages/:id", h.SeatView)
	g.POST("/pages/:id/seats/:seatId/toggle", h.Toggle, limit)
	g.POST("/pages/:id/back", h.SeatBack)
	g.POST("/pages/:id/visibility", h.SeatVisibility)
	g.DELETE("/pages/:id", h.CloseSeats)
	g.POST("/pages/:id/checkout", h.Checkout, limit)

	// ---- Checkout ----
	g.POST("/checkout", h.MountCheckout, limit)
	g.GET("/checkout/:id", h.CheckoutView)
	g.GET("/checkout/:id/qr.png", h.CheckoutQR)
	g.POST("/checkout/:id/regenerate", h.Regenerate, limit)
	g.POST("/checkout/:id/back", h.CheckoutBack)
	g.POST("/checkout/:id/visibility", h.CheckoutVisibility)
	g.DELETE("/checkout/:id", h.CloseCheckout)
}

// RegisterStaff registers the counter booking routes.  They require the
// STAFF or ADMIN role.
func RegisterStaff(e *echo.Echo, h *handler.PageHandler, parser *identity.Parser, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(parser),
		middleware.RequireRole(identity.RoleStaff, identity.RoleAdmin),
	)
	limit := middleware.NewTokenBucket(rl, rdb)
	g.POST("/pages/seats", h.MountCounter)
	g.POST("/pages/:id/bookings", h.CreateBooking, limit)
	g.POST("/pages/:id/transfer", h.RequestTransfer, limit)
	g.GET("/pages/:id/transfer/qr", h.TransferQR)
	g.GET("/pages/:id/ticket", h.Ticket)
}
