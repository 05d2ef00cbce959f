package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/middleware"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Delete disables a module, or removes it and everything it owns when
// ?permanent=true
func Delete(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	permanent := c.QueryBool("permanent", false)

	if err := registry.Delete(c.Context(), moduleID, middleware.ActorID(c), permanent); err != nil {
		return respond.CoreError(c, err)
	}

	message := "Module disabled"
	if permanent {
		message = "Module permanently deleted"
	}
	return response.SuccessWithMessage(c, message, nil)
}
