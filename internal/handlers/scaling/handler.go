package scaling

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

var store *core.ScalingPolicyStore

// Init wires the handler package to the scaling policy store
func Init(s *core.ScalingPolicyStore) {
	store = s
}

// Get returns the module's scaling policy, or null when none exists
func Get(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	policy, err := store.Get(c.Context(), moduleID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, policy)
}

// Upsert creates or patches the module's scaling policy. Bounds and
// thresholds are validated server-side on the merged result.
func Upsert(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	var spec core.PolicySpec
	if err := c.BodyParser(&spec); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	policy, err := store.Upsert(c.Context(), moduleID, spec)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, policy)
}

// Delete removes the module's scaling policy
func Delete(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	if err := store.Delete(c.Context(), moduleID); err != nil {
		return respond.CoreError(c, err)
	}

	return response.SuccessWithMessage(c, "Scaling policy deleted", nil)
}
