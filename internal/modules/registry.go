package modules

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

// Registry owns Module entities: identity, desired state, health
// snapshot and configuration. Control-channel calls issued here are
// best-effort; their failure never rolls back a committed write.
type Registry struct {
	db      *gorm.DB
	control control.Provider
	events  Events
}

func NewRegistry(db *gorm.DB, provider control.Provider, events Events) *Registry {
	return &Registry{db: db, control: provider, events: events}
}

// ModuleSpec is the input for creating a module.
type ModuleSpec struct {
	Name        string            `json:"name"`
	Type        models.ModuleType `json:"type"`
	Description *string           `json:"description"`
	Config      models.JSON       `json:"config"`
	ControlHost *string           `json:"controlHost"`
	ControlPort *int              `json:"controlPort"`
	Version     *string           `json:"version"`
	Image       *string           `json:"image"`
	Replicas    *int              `json:"replicas"`
	Enabled     bool              `json:"enabled"`
}

// ModulePatch is a partial update; nil fields are left untouched.
type ModulePatch struct {
	Description *string     `json:"description"`
	Config      models.JSON `json:"config"`
	ControlHost *string     `json:"controlHost"`
	ControlPort *int        `json:"controlPort"`
	Version     *string     `json:"version"`
	Image       *string     `json:"image"`
	Replicas    *int        `json:"replicas"`
}

func (r *Registry) Create(ctx context.Context, spec ModuleSpec, actorID string) (*models.Module, error) {
	if len(spec.Name) == 0 || len(spec.Name) > 100 {
		return nil, fmt.Errorf("name must be 1-100 characters: %w", ErrInvalidArgument)
	}
	if !spec.Type.IsValid() {
		return nil, fmt.Errorf("unknown module type %q: %w", spec.Type, ErrInvalidArgument)
	}

	var existing models.Module
	err := r.db.WithContext(ctx).Where("name = ?", spec.Name).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("module %q: %w", spec.Name, ErrDuplicateName)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	status := models.ModuleStatusDisabled
	if spec.Enabled {
		status = models.ModuleStatusStarting
	}

	module := models.Module{
		ID:           utils.GenerateShortID(),
		Name:         spec.Name,
		Type:         spec.Type,
		Description:  spec.Description,
		Config:       spec.Config,
		ControlHost:  spec.ControlHost,
		ControlPort:  spec.ControlPort,
		Version:      spec.Version,
		Image:        spec.Image,
		Replicas:     utils.PtrValue(spec.Replicas, 1),
		Enabled:      spec.Enabled,
		Status:       status,
		HealthStatus: control.HealthUnknown,
		CreatedBy:    actorID,
	}

	if err := r.db.WithContext(ctx).Create(&module).Error; err != nil {
		// Backstop for concurrent creates that pass the pre-check and
		// lose the race to the unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("module %q: %w", spec.Name, ErrDuplicateName)
		}
		return nil, err
	}

	log.Printf("Module created: %s (ID: %s) by user %s", module.Name, module.ID, actorID)
	return &module, nil
}

func (r *Registry) Get(ctx context.Context, moduleID string) (*models.Module, error) {
	var module models.Module
	err := r.db.WithContext(ctx).Where("id = ?", moduleID).First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &module, nil
}

// List returns one page of modules plus the total count of the
// filtered set, newest first.
func (r *Registry) List(ctx context.Context, skip, limit int, enabledOnly bool) ([]models.Module, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Module{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Module
	err := query.Order("createdAt DESC").Offset(skip).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Registry) Update(ctx context.Context, moduleID string, patch ModulePatch, actorID string) (*models.Module, error) {
	module, err := r.Get(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	connectionTouched := false
	endpointTouched := false
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Config != nil {
		updates["config"] = patch.Config
		connectionTouched = true
	}
	if patch.ControlHost != nil {
		updates["controlHost"] = *patch.ControlHost
		connectionTouched = true
		endpointTouched = true
	}
	if patch.ControlPort != nil {
		updates["controlPort"] = *patch.ControlPort
		connectionTouched = true
		endpointTouched = true
	}
	if patch.Version != nil {
		updates["version"] = *patch.Version
	}
	if patch.Image != nil {
		updates["image"] = *patch.Image
	}
	if patch.Replicas != nil {
		updates["replicas"] = *patch.Replicas
	}

	if len(updates) > 0 {
		err = r.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", moduleID).Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}

	module, err = r.Get(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	// The cached channel still dials the old address once the endpoint
	// changes; drop it so the next call reconnects.
	if endpointTouched {
		r.control.Drop(moduleID)
	}

	// Connection or config changes are pushed to the running module
	// after commit; a push failure is logged, never returned.
	if connectionTouched {
		if !r.pushConfig(ctx, module) {
			log.Printf("Warning: config push failed for module %s", module.Name)
		}
	}

	if r.events != nil {
		r.events.ModuleChanged(ctx, module.ID)
	}

	log.Printf("Module updated: %s (ID: %s) by user %s", module.Name, module.ID, actorID)
	return module, nil
}

// Delete disables the module (soft) or removes it with its routes,
// scaling policy and deployments (permanent).
func (r *Registry) Delete(ctx context.Context, moduleID string, actorID string, permanent bool) error {
	module, err := r.Get(ctx, moduleID)
	if err != nil {
		return err
	}

	if !permanent {
		err = r.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", moduleID).
			Updates(map[string]interface{}{
				"enabled": false,
				"status":  models.ModuleStatusDisabled,
			}).Error
		if err != nil {
			return err
		}
		log.Printf("Module disabled: %s (ID: %s) by user %s", module.Name, module.ID, actorID)
		return nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("moduleId = ?", moduleID).Delete(&models.ModuleRoute{}).Error; err != nil {
			return err
		}
		if err := tx.Where("moduleId = ?", moduleID).Delete(&models.ScalingPolicy{}).Error; err != nil {
			return err
		}
		if err := tx.Where("moduleId = ?", moduleID).Delete(&models.Deployment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", moduleID).Delete(&models.Module{}).Error
	})
	if err != nil {
		return err
	}

	r.control.Drop(moduleID)
	log.Printf("Module permanently deleted: %s (ID: %s) by user %s", module.Name, module.ID, actorID)
	return nil
}

// Enable records the desired state and transitions the module to
// starting, then asks the runtime to start. Desired state is
// authoritative; a failed start is reconciled by the next health check.
func (r *Registry) Enable(ctx context.Context, moduleID string, actorID string) (*models.Module, error) {
	return r.setDesiredState(ctx, moduleID, actorID, true)
}

// Disable is the inverse of Enable.
func (r *Registry) Disable(ctx context.Context, moduleID string, actorID string) (*models.Module, error) {
	return r.setDesiredState(ctx, moduleID, actorID, false)
}

func (r *Registry) setDesiredState(ctx context.Context, moduleID, actorID string, enabled bool) (*models.Module, error) {
	module, err := r.Get(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	status := models.ModuleStatusStopping
	action := "stop"
	if enabled {
		status = models.ModuleStatusStarting
		action = "start"
	}

	err = r.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", moduleID).
		Updates(map[string]interface{}{"enabled": enabled, "status": status}).Error
	if err != nil {
		return nil, err
	}
	module.Enabled = enabled
	module.Status = status

	if module.HasControlEndpoint() {
		ch := r.control.GetChannel(module.ID, *module.ControlHost, *module.ControlPort)
		ok := false
		if enabled {
			ok = ch.Start(ctx)
		} else {
			ok = ch.Stop(ctx)
		}
		if !ok {
			log.Printf("Warning: %s signal failed for module %s", action, module.Name)
		}
	}

	if r.events != nil {
		r.events.ModuleChanged(ctx, module.ID)
	}

	log.Printf("Module %s requested: %s (ID: %s) by user %s", action, module.Name, module.ID, actorID)
	return module, nil
}

// CheckHealth probes the module and persists the observed status. It
// degrades instead of failing: a missing endpoint yields an unknown
// snapshot and a transport error yields an unhealthy one.
func (r *Registry) CheckHealth(ctx context.Context, moduleID string) (control.HealthSnapshot, error) {
	module, err := r.Get(ctx, moduleID)
	if err != nil {
		return control.HealthSnapshot{}, err
	}

	if !module.HasControlEndpoint() {
		return control.HealthSnapshot{
			Status:    control.HealthUnknown,
			LastCheck: time.Now().UTC(),
			Error:     "control endpoint not configured",
		}, nil
	}

	ch := r.control.GetChannel(module.ID, *module.ControlHost, *module.ControlPort)
	snapshot := ch.HealthCheck(ctx)

	updates := map[string]interface{}{
		"healthStatus":    snapshot.Status,
		"lastHealthCheck": snapshot.LastCheck,
	}

	// Reconcile lifecycle status with the observed health: a starting
	// module that reports healthy is enabled, and any non-disabled
	// module that reports unhealthy is flagged as errored.
	switch {
	case snapshot.Status == control.HealthHealthy && module.Enabled && module.Status == models.ModuleStatusStarting:
		updates["status"] = models.ModuleStatusEnabled
	case snapshot.Status == control.HealthUnhealthy && module.Status != models.ModuleStatusDisabled:
		updates["status"] = models.ModuleStatusError
	}

	err = r.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", moduleID).Updates(updates).Error
	if err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// Metrics fetches the module's runtime metrics, empty when the module
// has no control endpoint or the call fails.
func (r *Registry) Metrics(ctx context.Context, moduleID string) (control.Metrics, error) {
	module, err := r.Get(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !module.HasControlEndpoint() {
		return control.Metrics{}, nil
	}
	ch := r.control.GetChannel(module.ID, *module.ControlHost, *module.ControlPort)
	return ch.GetMetrics(ctx), nil
}

func (r *Registry) pushConfig(ctx context.Context, module *models.Module) bool {
	if !module.HasControlEndpoint() {
		return false
	}
	ch := r.control.GetChannel(module.ID, *module.ControlHost, *module.ControlPort)
	return ch.UpdateConfig(ctx, module.Config)
}
