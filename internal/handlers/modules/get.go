package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Get returns a single module
func Get(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	module, err := registry.Get(c.Context(), moduleID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, module)
}
