package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

type rollbackRequest struct {
	Reason string `json:"reason"`
}

// Rollback retires a deployment and restores its immediate
// predecessor. Responds with the restored deployment.
func Rollback(c *fiber.Ctx) error {
	deploymentID := c.Params("deploymentId")
	if deploymentID == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	var req rollbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Reason == "" {
		return response.BadRequest(c, "Rollback reason is required")
	}

	restored, err := engine.Rollback(c.Context(), deploymentID, req.Reason)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, withDecryptedEnvironment(restored))
}
