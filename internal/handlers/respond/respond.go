package respond

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

// CoreError maps the module core's error taxonomy onto HTTP responses:
// missing records are 404, input mistakes 400, concurrent-write
// conflicts 409, consistency violations and everything else 500.
func CoreError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, modules.ErrModuleNotFound),
		errors.Is(err, modules.ErrRouteNotFound),
		errors.Is(err, modules.ErrPolicyNotFound),
		errors.Is(err, modules.ErrDeploymentNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, modules.ErrDuplicateName),
		errors.Is(err, modules.ErrInvalidArgument),
		errors.Is(err, modules.ErrNoPreviousDeployment):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, modules.ErrConflict):
		return response.Conflict(c, err.Error())
	default:
		return response.InternalServerError(c, err.Error())
	}
}
