package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/http/handlers"
	"github.com/spec-kit/clinic-queue/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Entries        *handlers.EntriesHandler
	Session        *handlers.SessionHandler
	History        *handlers.HistoryHandler
	Display        *handlers.DisplayHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	// Display boards poll without credentials.
	app.Get("/display/board", cfg.Display.Board)

	queue := app.Group("/queue", cfg.AuthMiddleware.Handle)

	queue.Post("/entries", cfg.Entries.Create)
	queue.Get("/entries", cfg.Entries.List)
	queue.Get("/entries/:id", cfg.Entries.Get)
	queue.Patch("/entries/:id/status", cfg.Entries.UpdateStatus)

	queue.Get("/session", cfg.Session.Current)
	queue.Post("/session/start", cfg.Session.Start)
	queue.Post("/session/advance", cfg.Session.Advance)
	queue.Put("/session/doctors", cfg.Session.UpdateDoctors)
	queue.Post("/session/stop", cfg.Session.Stop)

	queue.Get("/history", cfg.History.List)
	queue.Get("/history/:id", cfg.History.Get)
}
