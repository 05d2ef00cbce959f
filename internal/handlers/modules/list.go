package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// List returns a page of modules with the total count
func List(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)
	enabledOnly := c.QueryBool("enabled", false)

	items, total, err := registry.List(c.Context(), skip, limit, enabledOnly)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, fiber.Map{
		"items": items,
		"total": total,
	})
}
