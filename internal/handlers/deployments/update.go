package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/models"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

type updateRequest struct {
	Status             *models.DeploymentStatus `json:"status"`
	TrafficWeight      *float64                 `json:"trafficWeight"`
	Config             models.JSON              `json:"config"`
	Environment        map[string]string        `json:"environment"`
	HealthCheckPassed  *bool                    `json:"healthCheckPassed"`
	HealthCheckMessage *string                  `json:"healthCheckMessage"`
}

// Update patches deployment fields directly. This is the
// administrative escape hatch; it never runs supersession.
func Update(c *fiber.Ctx) error {
	deploymentID := c.Params("deploymentId")
	if deploymentID == "" {
		return response.BadRequest(c, "Deployment ID is required")
	}

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	environment, err := encryptEnvironment(req.Environment)
	if err != nil {
		return response.InternalServerError(c, "Failed to encrypt environment")
	}

	deployment, err := engine.Update(c.Context(), deploymentID, core.DeploymentPatch{
		Status:             req.Status,
		TrafficWeight:      req.TrafficWeight,
		Config:             req.Config,
		Environment:        environment,
		HealthCheckPassed:  req.HealthCheckPassed,
		HealthCheckMessage: req.HealthCheckMessage,
	})
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, withDecryptedEnvironment(deployment))
}
