package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/middleware"
)

// Handlers collects the handler set wired into the route tree.
type Handlers struct {
	Auth       *handler.AuthHandler
	Checkin    *handler.CheckinHandler
	Attendance *handler.AttendanceHandler
	Dashboard  *handler.DashboardHandler
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the versioned API. Login is open; everything else
// requires an operator JWT. Verifiers can submit check-ins and read
// attendance; the destructive ledger operations (revoke, rewind, delete)
// and the dashboard are admin-only.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.POST("/v1/auth/login", h.Auth.Login)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole("ADMIN", "VERIFIER"))
	v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// Verifier surface: the gate line.
	v1.POST("/registrations/:id/checkins", h.Checkin.Submit)
	v1.POST("/attendance/:txn/checkins", h.Checkin.SubmitByTransaction)
	v1.GET("/registrations/:id/rollup", h.Checkin.GetRollup)
	v1.GET("/registrations/:id/checkins", h.Attendance.ListBatches)
	v1.GET("/attendance/:txn", h.Attendance.GetByTransaction)
	v1.GET("/attendance", h.Attendance.Search)

	// Admin surface: corrections and reporting.
	admin := v1.Group("")
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/checkins/:id/revoke", h.Checkin.Revoke)
	admin.POST("/registrations/:id/rewind", h.Checkin.Rewind)
	admin.DELETE("/registrations/:id", h.Checkin.Delete)

	// Dashboard GETs aggregate the whole ledger, so they go through the
	// short-lived response cache. The rollup route above must not.
	cached := admin.Group("/dashboard")
	cached.Use(middleware.NewResponseCache(config.LoadCacheConfig(), rdb))
	cached.GET("/summary", h.Dashboard.Summary)
	cached.GET("/activity", h.Dashboard.Activity)
}
