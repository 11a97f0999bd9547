package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/shiftaiot/iot-platform/internal/api/http/handlers"
	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Users   *handlers.UsersHandler
	Gate    *auth.RequestGate
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes. The request gate runs for every request;
// routes that need a caller add auth.RequireAuthenticated or a stricter guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health", cfg.Health.Live)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/api/health", cfg.Health.Live)

	for _, prefix := range []string{"/auth", "/api/auth"} {
		authGroup := app.Group(prefix)
		authGroup.Post("/signin", cfg.Auth.Signin)
		authGroup.Post("/signup", cfg.Auth.Signup)
		authGroup.Post("/refresh", cfg.Auth.Refresh)
		authGroup.Post("/logout", cfg.Auth.Logout)
	}

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	users := app.Group("/api/users")
	users.Get("/me", auth.RequireAuthenticated(), cfg.Users.Me)
}
