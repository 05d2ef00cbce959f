package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/middleware"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Update patches a module's mutable fields
func Update(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	var patch core.ModulePatch
	if err := c.BodyParser(&patch); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	module, err := registry.Update(c.Context(), moduleID, patch, middleware.ActorID(c))
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, module)
}
