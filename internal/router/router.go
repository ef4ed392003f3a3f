package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradewatch/internal/config"
	"github.com/noah-isme/gradewatch/internal/handler"
	"github.com/noah-isme/gradewatch/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StatusHandler *handler.StatusHandler
}

// Register wires the ops HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.StatusHandler != nil {
		deps.StatusHandler.Register(api)
	}

	app.Get("/metrics", observability.MetricsHandler())
}
