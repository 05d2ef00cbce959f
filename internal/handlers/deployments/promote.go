package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/pkg/response"
)

type promoteRequest struct {
	TrafficWeight *float64 `json:"trafficWeight"`
	Incremental   bool     `json:"incremental"`
}

// Promote shifts traffic toward the requested weight. Incremental
// requests advance by one step per call; non-incremental requests jump
// straight to the target.
func Promote(c *fiber.Ctx) error {
	deploymentID := c.Params("deploymentId")
	if deploymentID == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	req := promoteRequest{}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	targetWeight := 100.0
	if req.TrafficWeight != nil {
		targetWeight = *req.TrafficWeight
	}

	deployment, err := engine.Promote(c.Context(), deploymentID, targetWeight, req.Incremental)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, withDecryptedEnvironment(deployment))
}
