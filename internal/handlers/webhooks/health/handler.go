package health

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/database"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/pkg/response"
)

var manager *control.Manager

// Init wires the handler package to the control-channel manager
func Init(m *control.Manager) {
	manager = m
}

type reportRequest struct {
	ModuleID     string  `json:"moduleId"`
	DeploymentID *string `json:"deploymentId"`
	Status       string  `json:"status"`
	Passed       *bool   `json:"passed"`
	Message      *string `json:"message"`
}

// Report ingests a health result from an external monitor and records
// it on the module and, optionally, a deployment. Recording only: the
// deployment status machine is never driven from here.
func Report(c *fiber.Ctx) error {
	var req reportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ModuleID == "" || req.Status == "" {
		return response.BadRequest(c, "moduleId and status are required")
	}

	db := database.GetDatabase()

	var module models.Module
	if err := db.Where("id = ?", req.ModuleID).First(&module).Error; err != nil {
		return response.NotFound(c, "Module not found")
	}

	now := time.Now().UTC()
	err := db.Model(&models.Module{}).Where("id = ?", req.ModuleID).
		Updates(map[string]interface{}{
			"healthStatus":    req.Status,
			"lastHealthCheck": &now,
		}).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to record health report")
	}

	if req.DeploymentID != nil {
		updates := map[string]interface{}{}
		if req.Passed != nil {
			updates["healthCheckPassed"] = *req.Passed
		}
		if req.Message != nil {
			updates["healthCheckMessage"] = *req.Message
		}
		if len(updates) > 0 {
			err = db.Model(&models.Deployment{}).
				Where("id = ? AND moduleId = ?", *req.DeploymentID, req.ModuleID).
				Updates(updates).Error
			if err != nil {
				return response.InternalServerError(c, "Failed to record deployment health")
			}
		}
	}

	return response.SuccessWithMessage(c, "Health report recorded", nil)
}

// Channels probes every cached control channel and returns the
// snapshots keyed by module id
func Channels(c *fiber.Ctx) error {
	return response.Success(c, manager.HealthCheckAll(c.Context()))
}
