package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-edu/workbook-api/internal/config"
	"github.com/lumen-edu/workbook-api/internal/handler"
	"github.com/lumen-edu/workbook-api/internal/middleware"
	"github.com/lumen-edu/workbook-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WorkbookHandler   *handler.WorkbookHandler
	SubmissionHandler *handler.SubmissionHandler
	ReviewHandler     *handler.ReviewHandler
	JWTMiddleware     fiber.Handler
	SubmissionLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.WorkbookHandler != nil {
		workbooks := app.Group("/api/v1/workbooks", jwtMiddleware, middleware.RequireRole("teacher", "admin"))
		deps.WorkbookHandler.Register(workbooks)
	}

	if deps.SubmissionHandler != nil {
		submissions := app.Group("/api/v1/submissions", jwtMiddleware)
		if deps.SubmissionLimiter != nil {
			submissions.Use(deps.SubmissionLimiter)
		}
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.ReviewHandler != nil {
		reviews := app.Group("/api/v1/reviews", jwtMiddleware, middleware.RequireRole("teacher", "admin"))
		deps.ReviewHandler.Register(reviews)
	}
}
