package modules

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Health probes the module's control channel and returns the snapshot.
// Probe failures are reported in the snapshot, not as request errors.
func Health(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	snapshot, err := registry.CheckHealth(c.Context(), moduleID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, snapshot)
}

// Metrics returns the module's runtime metric snapshot, empty when the
// module is unreachable or has no control endpoint
func Metrics(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	metrics, err := registry.Metrics(c.Context(), moduleID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, metrics)
}
