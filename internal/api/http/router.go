package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/policy-service/internal/api/http/handlers"
	"github.com/spec-kit/policy-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agents         *handlers.AgentsHandler
	Customers      *handlers.CustomersHandler
	Policies       *handlers.PoliciesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The quoting flow is public;
// destructive and administrative operations require an agent token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/agents/register", cfg.Agents.Register)
	authGroup.Post("/agents/login", cfg.Agents.Login)

	api := app.Group("/api/v1")

	api.Post("/customers", cfg.Customers.Create)
	api.Get("/customers/search", cfg.Customers.Search)
	api.Get("/customers/:id", cfg.Customers.Get)
	api.Put("/customers/:id", cfg.Customers.Update)
	api.Delete("/customers/:id", cfg.AuthMiddleware.Handle, cfg.Customers.Delete)

	api.Post("/quotes", cfg.Policies.CreateQuote)
	api.Get("/policies", cfg.Policies.List)
	api.Put("/policies/:id/pay", cfg.Policies.Pay)
	api.Put("/policies/:id/state", cfg.AuthMiddleware.Handle, cfg.Policies.ChangeState)
	api.Get("/policies/:id/history", cfg.Policies.History)
}
