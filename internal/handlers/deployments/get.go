package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// Get returns a single deployment
func Get(c *fiber.Ctx) error {
	deploymentID := c.Params("deploymentId")
	if deploymentID == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	deployment, err := engine.Get(c.Context(), deploymentID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, withDecryptedEnvironment(deployment))
}
