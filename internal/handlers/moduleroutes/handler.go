package moduleroutes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/handlers/respond"
	core "github.com/proxygrid/proxygrid/internal/modules"
	"github.com/proxygrid/proxygrid/pkg/response"
)

var manager *core.RouteManager

// Init wires the handler package to the route manager
func Init(m *core.RouteManager) {
	manager = m
}

// Create adds a routing rule to a module. The module's runtime is
// asked to reload after the rule commits.
func Create(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	var spec core.RouteSpec
	if err := c.BodyParser(&spec); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	route, err := manager.Create(c.Context(), moduleID, spec)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, route)
}

// List returns a module's routes in evaluation order
func List(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	if moduleID == "" {
		return response.BadRequest(c, "Module ID is required")
	}

	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 100)

	items, total, err := manager.List(c.Context(), moduleID, skip, limit)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, fiber.Map{
		"items": items,
		"total": total,
	})
}

// Get returns a single route
func Get(c *fiber.Ctx) error {
	routeID := c.Params("routeId")
	if routeID == "" {
		return response.BadRequest(c, "Route ID is required")
	}

	route, err := manager.Get(c.Context(), routeID)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, route)
}

// Update patches a route and triggers a reload on its module
func Update(c *fiber.Ctx) error {
	routeID := c.Params("routeId")
	if routeID == "" {
		return response.BadRequest(c, "Route ID is required")
	}

	var patch core.RoutePatch
	if err := c.BodyParser(&patch); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	route, err := manager.Update(c.Context(), routeID, patch)
	if err != nil {
		return respond.CoreError(c, err)
	}

	return response.Success(c, route)
}

// Delete removes a route and triggers a reload on its module
func Delete(c *fiber.Ctx) error {
	routeID := c.Params("routeId")
	if routeID == "" {
		return response.BadRequest(c, "Route ID is required")
	}

	if err := manager.Delete(c.Context(), routeID); err != nil {
		return respond.CoreError(c, err)
	}

	return response.SuccessWithMessage(c, "Route deleted", nil)
}
