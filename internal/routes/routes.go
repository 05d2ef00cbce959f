package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/config"
	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/database"
	deploymenthandlers "github.com/proxygrid/proxygrid/internal/handlers/deployments"
	modulehandlers "github.com/proxygrid/proxygrid/internal/handlers/modules"
	"github.com/proxygrid/proxygrid/internal/handlers/moduleroutes"
	"github.com/proxygrid/proxygrid/internal/handlers/scaling"
	webhookhealth "github.com/proxygrid/proxygrid/internal/handlers/webhooks/health"
	"github.com/proxygrid/proxygrid/internal/middleware"
	"github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/internal/notify"
	wshandler "github.com/proxygrid/proxygrid/internal/websocket"
)

// Setup builds the core services around the shared database, control
// manager and notifier, then mounts the API surface.
func Setup(app *fiber.App, cfg *config.Config, manager *control.Manager, publisher *notify.Publisher) {
	db := database.GetDatabase()

	modulehandlers.Init(modules.NewRegistry(db, manager, publisher))
	moduleroutes.Init(modules.NewRouteManager(db, manager, publisher))
	scaling.Init(modules.NewScalingPolicyStore(db))
	deploymenthandlers.Init(modules.NewDeploymentEngine(db, publisher))
	webhookhealth.Init(manager)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// WebSocket
	api.Use("/socket", wshandler.UpgradeMiddleware)
	api.Get("/socket", websocket.New(wshandler.Handler))

	// Modules - protected (JWT)
	moduleRoutes := api.Group("/modules", middleware.AuthMiddleware(cfg))
	{
		moduleRoutes.Post("/", modulehandlers.Create)
		moduleRoutes.Get("/", modulehandlers.List)
		moduleRoutes.Get("/:moduleId", modulehandlers.Get)
		moduleRoutes.Patch("/:moduleId", modulehandlers.Update)
		moduleRoutes.Delete("/:moduleId", modulehandlers.Delete)
		moduleRoutes.Post("/:moduleId/enable", modulehandlers.Enable)
		moduleRoutes.Post("/:moduleId/disable", modulehandlers.Disable)
		moduleRoutes.Get("/:moduleId/health", modulehandlers.Health)
		moduleRoutes.Get("/:moduleId/metrics", modulehandlers.Metrics)

		// Routes
		moduleRoutes.Post("/:moduleId/routes", moduleroutes.Create)
		moduleRoutes.Get("/:moduleId/routes", moduleroutes.List)
		moduleRoutes.Get("/:moduleId/routes/:routeId", moduleroutes.Get)
		moduleRoutes.Patch("/:moduleId/routes/:routeId", moduleroutes.Update)
		moduleRoutes.Delete("/:moduleId/routes/:routeId", moduleroutes.Delete)

		// Scaling policy (single record per module)
		moduleRoutes.Get("/:moduleId/scaling", scaling.Get)
		moduleRoutes.Put("/:moduleId/scaling", scaling.Upsert)
		moduleRoutes.Delete("/:moduleId/scaling", scaling.Delete)

		// Deployments
		moduleRoutes.Post("/:moduleId/deployments", deploymenthandlers.Create)
		moduleRoutes.Get("/:moduleId/deployments", deploymenthandlers.List)
		moduleRoutes.Get("/:moduleId/deployments/:deploymentId", deploymenthandlers.Get)
		moduleRoutes.Patch("/:moduleId/deployments/:deploymentId", deploymenthandlers.Update)
		moduleRoutes.Post("/:moduleId/deployments/:deploymentId/promote", deploymenthandlers.Promote)
		moduleRoutes.Post("/:moduleId/deployments/:deploymentId/rollback", deploymenthandlers.Rollback)
	}

	// Webhooks - internal services (X-Api-Key)
	webhooks := api.Group("/webhooks", middleware.InternalApiKeyMiddleware(cfg))
	{
		webhooks.Post("/health", webhookhealth.Report)
		webhooks.Get("/health/channels", webhookhealth.Channels)
	}
}
