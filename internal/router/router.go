package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fitgrid/gym-session-engine/internal/config"
	"github.com/fitgrid/gym-session-engine/internal/handler"
	"github.com/fitgrid/gym-session-engine/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring poll this endpoint.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token and returns a new pair.
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh_token body or a Bearer header, so it
	// is registered outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("MEMBER", "STAFF"))
	auth.GET("/me", a.Me)
}

// RegisterLocations registers the unauthenticated browse endpoints so
// guests can inspect gyms and rates before creating an account.
func RegisterLocations(e *echo.Echo, lh *handler.LocationHandler) {
	e.GET("/v1/locations", lh.List)
	e.GET("/v1/locations/:id", lh.Get)
}

// RegisterEngine registers the session, check-in and wallet endpoints.
// All of them require a valid access token.  The check-in endpoint is
// additionally rate limited per client, and credential decoding is
// restricted to staff.
func RegisterEngine(e *echo.Echo, sh *handler.SessionHandler, ch *handler.CheckInHandler, wh *handler.WalletHandler, jwtSecret string, rdb *redis.Client, rl config.RateLimitConfig) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("MEMBER", "STAFF"))

	g.POST("/sessions", sh.Create)
	g.GET("/sessions", sh.List)
	g.GET("/sessions/:id", sh.Get)
	g.POST("/sessions/:id/extend", sh.Extend)
	g.POST("/sessions/:id/checkout", sh.CheckOut)
	g.DELETE("/sessions/:id", sh.Cancel)

	g.POST("/checkin", ch.CheckIn, middleware.RateLimit(rdb, rl))
	g.POST("/checkin/decode", ch.DecodeToken, middleware.RequireRole("STAFF"))

	g.GET("/wallet", wh.Balance)
	g.GET("/wallet/ledger", wh.Ledger)
	g.POST("/wallet/topup", wh.TopUp)
}
