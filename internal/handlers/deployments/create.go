package deployments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	"github.com/proxygrid/proxygrid/internal/middleware"
	"github.com/proxygrid/proxygrid/internal/models"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

type createRequest struct {
	Version       string            `json:"version"`
	Image         string            `json:"image"`
	Config        models.JSON       `json:"config"`
	Environment   map[string]string `json:"environment"`
	TrafficWeight float64           `json:"trafficWeight"`
}

// Create records a new rollout attempt for a module
func Create(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	environment, err := encryptEnvironment(req.Environment)
	if err != nil {
		return response.InternalServerError(c, "Failed to encrypt environment")
	}

	deployment, err := engine.Create(c.Context(), moduleID, core.DeploymentSpec{
		Version:       req.Version,
		Image:         req.Image,
		Config:        req.Config,
		Environment:   environment,
		TrafficWeight: req.TrafficWeight,
	}, middleware.ActorID(c))
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, withDecryptedEnvironment(deployment))
}
