package modules

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

// promoteStep is the traffic-weight increment applied per incremental
// promote call, in percentage points.
const promoteStep = 10.0

// DeploymentEngine implements the blue/green state machine. A module
// has at most one ACTIVE deployment; the engine guarantees that by
// committing the promote/rollback write pairs inside one transaction,
// guarded against concurrent writers.
type DeploymentEngine struct {
	db     *gorm.DB
	events Events
}

func NewDeploymentEngine(db *gorm.DB, events Events) *DeploymentEngine {
	return &DeploymentEngine{db: db, events: events}
}

type DeploymentSpec struct {
	Version       string      `json:"version"`
	Image         string      `json:"image"`
	Config        models.JSON `json:"config"`
	Environment   models.JSON `json:"environment"`
	TrafficWeight float64     `json:"trafficWeight"`
}

// DeploymentPatch is the administrative escape hatch. It never runs
// supersession; callers that want promotion semantics use Promote.
type DeploymentPatch struct {
	Status             *models.DeploymentStatus `json:"status"`
	TrafficWeight      *float64                 `json:"trafficWeight"`
	Config             models.JSON              `json:"config"`
	Environment        models.JSON              `json:"environment"`
	HealthCheckPassed  *bool                    `json:"healthCheckPassed"`
	HealthCheckMessage *string                  `json:"healthCheckMessage"`
}

// Create records a new rollout attempt in PENDING state and captures
// the module's current active deployment as the rollback target. This
// is the only place previousDeploymentId is ever assigned.
func (e *DeploymentEngine) Create(ctx context.Context, moduleID string, spec DeploymentSpec, actorID string) (*models.Deployment, error) {
	var module models.Module
	err := e.db.WithContext(ctx).Where("id = ?", moduleID).First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}

	if spec.Version == "" {
		return nil, fmt.Errorf("version is required: %w", ErrInvalidArgument)
	}
	if spec.Image == "" {
		return nil, fmt.Errorf("image is required: %w", ErrInvalidArgument)
	}
	if spec.TrafficWeight < 0 || spec.TrafficWeight > 100 {
		return nil, fmt.Errorf("traffic weight must be between 0 and 100: %w", ErrInvalidArgument)
	}

	deployment := models.Deployment{
		ID:            utils.GenerateShortID(),
		ModuleID:      moduleID,
		Version:       spec.Version,
		Image:         spec.Image,
		Config:        spec.Config,
		Environment:   spec.Environment,
		TrafficWeight: spec.TrafficWeight,
		Status:        models.DeploymentStatusPending,
		DeployedBy:    actorID,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row-locked read: a promote activating the predecessor in a
		// concurrent transaction must commit or abort before this
		// lookup, so the captured pointer cannot go stale.
		current, err := activeDeployment(lockForUpdate(tx), moduleID)
		if err != nil {
			return err
		}
		if current != nil {
			deployment.PreviousDeploymentID = &current.ID
		}
		return tx.Create(&deployment).Error
	})
	if err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.DeploymentChanged(ctx, moduleID, deployment.ID, EventDeploymentCreated)
	}
	log.Printf("Deployment created: %s for module %s (ID: %s)", deployment.Version, moduleID, deployment.ID)
	return &deployment, nil
}

func (e *DeploymentEngine) Get(ctx context.Context, deploymentID string) (*models.Deployment, error) {
	var deployment models.Deployment
	err := e.db.WithContext(ctx).Where("id = ?", deploymentID).First(&deployment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeploymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// List returns one page of the module's deployments, newest first.
func (e *DeploymentEngine) List(ctx context.Context, moduleID string, skip, limit int) ([]models.Deployment, int64, error) {
	query := e.db.WithContext(ctx).Model(&models.Deployment{}).Where("moduleId = ?", moduleID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Deployment
	err := query.Order("deployedAt DESC").Offset(skip).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Active returns the module's current active deployment, or nil.
func (e *DeploymentEngine) Active(ctx context.Context, moduleID string) (*models.Deployment, error) {
	return activeDeployment(e.db.WithContext(ctx), moduleID)
}

// Promote shifts traffic toward targetWeight. Non-incremental calls
// jump straight to the target; incremental calls advance by one step
// per call, so repeated calls are required to reach the target.
// Reaching 100 activates the deployment and atomically deactivates the
// one it replaces.
func (e *DeploymentEngine) Promote(ctx context.Context, deploymentID string, targetWeight float64, incremental bool) (*models.Deployment, error) {
	if targetWeight < 0 || targetWeight > 100 {
		return nil, fmt.Errorf("traffic weight must be between 0 and 100: %w", ErrInvalidArgument)
	}

	var promoted models.Deployment
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Deployment
		err := tx.Where("id = ?", deploymentID).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDeploymentNotFound
		}
		if err != nil {
			return err
		}

		oldWeight := d.TrafficWeight
		newWeight := targetWeight
		if incremental {
			newWeight = math.Min(d.TrafficWeight+promoteStep, targetWeight)
		}

		newStatus := d.Status
		var completedAt *time.Time
		switch {
		case newWeight == 100:
			newStatus = models.DeploymentStatusActive
			if d.Status != models.DeploymentStatusActive {
				now := time.Now().UTC()
				completedAt = &now
			}
		case newWeight > 0:
			newStatus = models.DeploymentStatusRollingOut
		}
		// weight 0 leaves the status untouched

		if newWeight == oldWeight && newStatus == d.Status {
			promoted = d
			return nil
		}

		updates := map[string]interface{}{
			"trafficWeight": newWeight,
			"status":        newStatus,
		}
		if completedAt != nil {
			updates["completedAt"] = completedAt
		}

		// The weight read above guards the write: a concurrent promote
		// or rollback that landed in between leaves zero rows matched
		// instead of silently losing an increment.
		res := tx.Model(&models.Deployment{}).
			Where("id = ? AND trafficWeight = ?", deploymentID, oldWeight).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		// Supersession demotes every other ACTIVE row of the module,
		// not just the recorded predecessor, so at most one deployment
		// stays ACTIVE even against a stale predecessor pointer.
		if newStatus == models.DeploymentStatusActive && d.Status != models.DeploymentStatusActive {
			err := tx.Model(&models.Deployment{}).
				Where("moduleId = ? AND status = ? AND id <> ?",
					d.ModuleID, models.DeploymentStatusActive, d.ID).
				Updates(map[string]interface{}{
					"status":        models.DeploymentStatusInactive,
					"trafficWeight": 0.0,
				}).Error
			if err != nil {
				return err
			}
		}

		d.TrafficWeight = newWeight
		d.Status = newStatus
		if completedAt != nil {
			d.CompletedAt = completedAt
		}
		promoted = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.DeploymentChanged(ctx, promoted.ModuleID, promoted.ID, EventDeploymentPromoted)
	}
	log.Printf("Deployment promoted: %s (ID: %s) to %.1f%% traffic", promoted.Version, promoted.ID, promoted.TrafficWeight)
	return &promoted, nil
}

// Rollback retires the deployment and restores its immediate
// predecessor to ACTIVE at full weight. One-level undo only: the chain
// is never walked further back. Returns the restored deployment.
func (e *DeploymentEngine) Rollback(ctx context.Context, deploymentID string, reason string) (*models.Deployment, error) {
	var restored models.Deployment
	var retired models.Deployment

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Deployment
		err := tx.Where("id = ?", deploymentID).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDeploymentNotFound
		}
		if err != nil {
			return err
		}

		if d.PreviousDeploymentID == nil {
			return ErrNoPreviousDeployment
		}

		var previous models.Deployment
		err = tx.Where("id = ?", *d.PreviousDeploymentID).First(&previous).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPreviousDeploymentMissing
		}
		if err != nil {
			return err
		}

		message := "Rolled back: " + reason

		// Status guard: a promote racing this rollback aborts the whole
		// transaction rather than leaving a half-applied pair.
		res := tx.Model(&models.Deployment{}).
			Where("id = ? AND status = ?", d.ID, d.Status).
			Updates(map[string]interface{}{
				"status":             models.DeploymentStatusRolledBack,
				"trafficWeight":      0.0,
				"healthCheckMessage": message,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		err = tx.Model(&models.Deployment{}).
			Where("id = ?", previous.ID).
			Updates(map[string]interface{}{
				"status":        models.DeploymentStatusActive,
				"trafficWeight": 100.0,
			}).Error
		if err != nil {
			return err
		}

		d.Status = models.DeploymentStatusRolledBack
		d.TrafficWeight = 0
		d.HealthCheckMessage = &message
		retired = d

		previous.Status = models.DeploymentStatusActive
		previous.TrafficWeight = 100
		restored = previous
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.DeploymentChanged(ctx, restored.ModuleID, retired.ID, EventDeploymentRolledBack)
	}
	log.Printf("Deployment rolled back: %s -> %s. Reason: %s", retired.Version, restored.Version, reason)
	return &restored, nil
}

// Update patches deployment fields directly, bypassing the guarded
// promote/rollback paths. Administrative correction only.
func (e *DeploymentEngine) Update(ctx context.Context, deploymentID string, patch DeploymentPatch) (*models.Deployment, error) {
	deployment, err := e.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	if patch.TrafficWeight != nil && (*patch.TrafficWeight < 0 || *patch.TrafficWeight > 100) {
		return nil, fmt.Errorf("traffic weight must be between 0 and 100: %w", ErrInvalidArgument)
	}

	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.TrafficWeight != nil {
		updates["trafficWeight"] = *patch.TrafficWeight
	}
	if patch.Config != nil {
		updates["config"] = patch.Config
	}
	if patch.Environment != nil {
		updates["environment"] = patch.Environment
	}
	if patch.HealthCheckPassed != nil {
		updates["healthCheckPassed"] = *patch.HealthCheckPassed
	}
	if patch.HealthCheckMessage != nil {
		updates["healthCheckMessage"] = *patch.HealthCheckMessage
	}

	if len(updates) > 0 {
		err = e.db.WithContext(ctx).Model(&models.Deployment{}).Where("id = ?", deploymentID).Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}

	deployment, err = e.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.DeploymentChanged(ctx, deployment.ModuleID, deployment.ID, EventDeploymentUpdated)
	}
	log.Printf("Deployment updated: %s (ID: %s)", deployment.Version, deployment.ID)
	return deployment, nil
}

// lockForUpdate takes row locks where the database supports them.
// sqlite rejects the FOR UPDATE syntax and serializes writers anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// activeDeployment picks the most recently deployed ACTIVE deployment.
// The engine keeps at most one ACTIVE per module; ordering by
// deployedAt makes the lookup deterministic even against dirty data.
func activeDeployment(db *gorm.DB, moduleID string) (*models.Deployment, error) {
	var d models.Deployment
	err := db.Where("moduleId = ? AND status = ?", moduleID, models.DeploymentStatusActive).
		Order("deployedAt DESC").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
