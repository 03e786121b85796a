package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterCustomer registers the booking and payment endpoints.  Every
// route requires a valid access token.  Mutating routes share the tighter
// booking bucket and hold creation is replayed by Idempotency-Key.
func RegisterCustomer(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("CUSTOMER", "ADMIN"))

	booking := middleware.NewTokenBucket(d.BookingRateLimit, d.Redis, d.Log)
	idem := middleware.NewIdempotency(d.Idempotency, d.Redis, d.Log)

	g.POST("/bookings", d.Bookings.CreateHold, booking, idem)
	g.GET("/bookings/:id", d.Bookings.GetBooking)
	g.DELETE("/bookings/:id/hold", d.Bookings.ReleaseHold, booking)
	g.GET("/my-bookings", d.Bookings.MyBookings)

	g.POST("/payments", d.Payments.Checkout, booking)
	g.POST("/payments/confirm", d.Payments.Confirm, booking)
}
