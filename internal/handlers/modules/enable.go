package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/middleware"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Enable sets the module's desired state to enabled and signals its
// runtime to start
func Enable(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	module, err := registry.Enable(c.Context(), moduleID, middleware.ActorID(c))
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, module)
}

// Disable sets the module's desired state to disabled and signals its
// runtime to stop
func Disable(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	module, err := registry.Disable(c.Context(), moduleID, middleware.ActorID(c))
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, module)
}
