package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterAdmin registers /v1/admin.  All routes require the ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("ADMIN"))
	c := d.Catalog

	// ---- Movies ----
	g.GET("/movies", c.AdminListMovies)
	g.POST("/movies", c.CreateMovie)
	g.PUT("/movies/:id", c.UpdateMovie)
	g.DELETE("/movies/:id", c.DeleteMovie)

	// ---- Screens and seats ----
	g.GET("/screens", c.ListScreens)
	g.POST("/screens", c.CreateScreen)
	g.PUT("/screens/:id", c.UpdateScreen)
	g.DELETE("/screens/:id", c.DeleteScreen)
	g.GET("/screens/:id/seats", c.ListSeats)
	g.PUT("/screens/:id/seats/:seatId", c.UpdateSeat)
	g.GET("/screens/:id/screenings", c.ScreenScreenings)

	// ---- Screenings ----
	g.POST("/screenings", c.CreateScreening)
	g.PUT("/screenings/:id", c.UpdateScreening)
	g.DELETE("/screenings/:id", c.DeleteScreening)

	// ---- Pricing rules ----
	g.GET("/pricing", d.Pricing.List)
	g.POST("/pricing", d.Pricing.Create)
	g.PUT("/pricing/:id", d.Pricing.Update)
	g.DELETE("/pricing/:id", d.Pricing.Delete)

	g.GET("/stats", c.GetStats)
}
