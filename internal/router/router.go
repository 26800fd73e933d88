package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/sales-tenancy/internal/handler" // HTTP handlers
	"github.com/iliyamo/sales-tenancy/internal/metrics" // Prometheus exposition
)

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness against the database and the metrics scrape.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers the sign-in endpoint.  Extra middleware, such as
// the login rate limiter, wraps only this route.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, mw...)
}
