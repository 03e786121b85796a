// Package router registers the HTTP routes of the ticketing API.
package router

import (
	"database/sql"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// Deps carries everything the routes need.  Redis may be nil, in which
// case rate limiting, caching and idempotent replay are disabled.
type Deps struct {
	DB        *sql.DB
	Redis     *redis.Client
	Log       *slog.Logger
	JWTSecret string

	RateLimit        config.RateLimitConfig
	BookingRateLimit config.RateLimitConfig
	Cache            config.CacheConfig
	Idempotency      config.IdempotencyConfig

	Auth     *handler.AuthHandler
	Catalog  *handler.CatalogHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Pricing  *handler.PricingHandler
}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))

	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB, d.Redis))

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	RegisterAuth(e, d.Auth, d.JWTSecret, limit)
	RegisterPublic(e, d, limit)
	RegisterCustomer(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterAuth registers /v1/auth and the authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated catalog.  Listings go
// through the response cache; the seat map never does.
func RegisterPublic(e *echo.Echo, d Deps, limit echo.MiddlewareFunc) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	g := e.Group("/v1", limit)

	g.GET("/movies", d.Catalog.ListMovies, cache)
	g.GET("/movies/:id", d.Catalog.GetMovie, cache)
	g.GET("/movies/:id/screenings", d.Catalog.MovieScreenings, cache)
	g.GET("/screenings/:id", d.Catalog.GetScreening, cache)
	g.GET("/pricing/rules", d.Pricing.List, cache)

	g.GET("/seats/map", d.Bookings.SeatMap)
}
