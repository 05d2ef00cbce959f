package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/middleware"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Create registers a new module
func Create(c *fiber.Ctx) error {
	var spec core.ModuleSpec
	if err := c.BodyParser(&spec); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	module, err := registry.Create(c.Context(), spec, middleware.ActorID(c))
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, module)
}
