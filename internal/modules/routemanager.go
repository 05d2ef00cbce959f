package modules

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

// RouteManager owns the ordered routing rules of a module. Every
// mutation commits first and then nudges the running module to reload;
// the reload outcome is advisory and never fails the mutation.
type RouteManager struct {
	db      *gorm.DB
	control control.Provider
	events  Events
}

func NewRouteManager(db *gorm.DB, provider control.Provider, events Events) *RouteManager {
	return &RouteManager{db: db, control: provider, events: events}
}

type RouteSpec struct {
	Name          string      `json:"name"`
	MatchRules    models.JSON `json:"matchRules"`
	BackendConfig models.JSON `json:"backendConfig"`
	RateLimit     *float64    `json:"rateLimit"`
	Priority      *int        `json:"priority"`
	Enabled       *bool       `json:"enabled"`
}

type RoutePatch struct {
	Name          *string     `json:"name"`
	MatchRules    models.JSON `json:"matchRules"`
	BackendConfig models.JSON `json:"backendConfig"`
	RateLimit     *float64    `json:"rateLimit"`
	Priority      *int        `json:"priority"`
	Enabled       *bool       `json:"enabled"`
}

func (m *RouteManager) Create(ctx context.Context, moduleID string, spec RouteSpec) (*models.ModuleRoute, error) {
	var module models.Module
	err := m.db.WithContext(ctx).Where("id = ?", moduleID).First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}

	if spec.Name == "" {
		return nil, fmt.Errorf("route name is required: %w", ErrInvalidArgument)
	}
	if len(spec.MatchRules) == 0 {
		return nil, fmt.Errorf("match rules are required: %w", ErrInvalidArgument)
	}
	if spec.RateLimit != nil && *spec.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must be >= 0: %w", ErrInvalidArgument)
	}

	route := models.ModuleRoute{
		ID:            utils.GenerateShortID(),
		ModuleID:      moduleID,
		Name:          spec.Name,
		MatchRules:    spec.MatchRules,
		BackendConfig: spec.BackendConfig,
		RateLimit:     spec.RateLimit,
		Priority:      utils.PtrValue(spec.Priority, 100),
		Enabled:       utils.PtrValue(spec.Enabled, true),
	}

	if err := m.db.WithContext(ctx).Create(&route).Error; err != nil {
		return nil, err
	}

	m.notifyReload(ctx, &module)
	log.Printf("Route created: %s for module %s", route.Name, moduleID)
	return &route, nil
}

// List returns one page of the module's routes in evaluation order:
// priority descending, insertion order breaking ties.
func (m *RouteManager) List(ctx context.Context, moduleID string, skip, limit int) ([]models.ModuleRoute, int64, error) {
	query := m.db.WithContext(ctx).Model(&models.ModuleRoute{}).Where("moduleId = ?", moduleID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.ModuleRoute
	err := query.Order("priority DESC, createdAt ASC").Offset(skip).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (m *RouteManager) Get(ctx context.Context, routeID string) (*models.ModuleRoute, error) {
	var route models.ModuleRoute
	err := m.db.WithContext(ctx).Where("id = ?", routeID).First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (m *RouteManager) Update(ctx context.Context, routeID string, patch RoutePatch) (*models.ModuleRoute, error) {
	route, err := m.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}

	if patch.RateLimit != nil && *patch.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must be >= 0: %w", ErrInvalidArgument)
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.MatchRules != nil {
		updates["matchRules"] = patch.MatchRules
	}
	if patch.BackendConfig != nil {
		updates["backendConfig"] = patch.BackendConfig
	}
	if patch.RateLimit != nil {
		updates["rateLimit"] = *patch.RateLimit
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Enabled != nil {
		updates["enabled"] = *patch.Enabled
	}

	if len(updates) > 0 {
		err = m.db.WithContext(ctx).Model(&models.ModuleRoute{}).Where("id = ?", routeID).Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}

	route, err = m.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}

	m.Reload(ctx, route.ModuleID)
	log.Printf("Route updated: %s (ID: %s)", route.Name, route.ID)
	return route, nil
}

func (m *RouteManager) Delete(ctx context.Context, routeID string) error {
	route, err := m.Get(ctx, routeID)
	if err != nil {
		return err
	}

	if err := m.db.WithContext(ctx).Where("id = ?", routeID).Delete(&models.ModuleRoute{}).Error; err != nil {
		return err
	}

	m.Reload(ctx, route.ModuleID)
	log.Printf("Route deleted: %s (ID: %s)", route.Name, route.ID)
	return nil
}

// Reload asks the module's runtime to re-read its route table. Returns
// false without error when the module has no control endpoint or the
// call fails; callers treat the result as advisory.
func (m *RouteManager) Reload(ctx context.Context, moduleID string) bool {
	var module models.Module
	if err := m.db.WithContext(ctx).Where("id = ?", moduleID).First(&module).Error; err != nil {
		return false
	}
	return m.notifyReload(ctx, &module)
}

func (m *RouteManager) notifyReload(ctx context.Context, module *models.Module) bool {
	if m.events != nil {
		m.events.RoutesChanged(ctx, module.ID)
	}
	if !module.HasControlEndpoint() {
		return false
	}
	ch := m.control.GetChannel(module.ID, *module.ControlHost, *module.ControlPort)
	ok := ch.ReloadRoutes(ctx)
	if !ok {
		log.Printf("Warning: route reload failed for module %s", module.Name)
	}
	return ok
}
