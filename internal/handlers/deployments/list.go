package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// List returns a page of the module's deployment history, newest first
func List(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)

	items, total, err := engine.List(c.Context(), moduleID, skip, limit)
	if err != nil {
		return respond.CoreError(c, err)
	}

	decrypted := make([]models.Deployment, len(items))
	for i := range items {
		decrypted[i] = *withDecryptedEnvironment(&items[i])
	}

	return response.Success(c, fiber.Map{
		"items": decrypted,
		"total": total,
	})
}
