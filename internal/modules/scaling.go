package modules

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

// ScalingPolicyStore is a validated CRUD store for the single scaling
// policy record a module may carry. No scaling loop runs here; an
// external autoscaler consumes these records.
type ScalingPolicyStore struct {
	db *gorm.DB
}

func NewScalingPolicyStore(db *gorm.DB) *ScalingPolicyStore {
	return &ScalingPolicyStore{db: db}
}

// PolicySpec is both the create input and the partial patch for
// Upsert; nil fields fall back to the existing record's values (or
// the column defaults on create).
type PolicySpec struct {
	MinInstances       *int                  `json:"minInstances"`
	MaxInstances       *int                  `json:"maxInstances"`
	ScaleUpThreshold   *float64              `json:"scaleUpThreshold"`
	ScaleDownThreshold *float64              `json:"scaleDownThreshold"`
	CooldownSeconds    *int                  `json:"cooldownSeconds"`
	Metric             *models.ScalingMetric `json:"metric"`
	Enabled            *bool                 `json:"enabled"`
}

// Upsert creates the module's policy or patches the existing one. The
// bound and threshold relationships are validated against the merged
// effective values, so a partial patch cannot sneak past validation.
func (s *ScalingPolicyStore) Upsert(ctx context.Context, moduleID string, spec PolicySpec) (*models.ScalingPolicy, error) {
	existing, err := s.Get(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	policy := models.ScalingPolicy{
		MinInstances:       1,
		MaxInstances:       10,
		ScaleUpThreshold:   80,
		ScaleDownThreshold: 20,
		CooldownSeconds:    300,
		Metric:             models.ScalingMetricCPU,
		Enabled:            true,
	}
	if existing != nil {
		policy = *existing
	}

	policy.MinInstances = utils.PtrValue(spec.MinInstances, policy.MinInstances)
	policy.MaxInstances = utils.PtrValue(spec.MaxInstances, policy.MaxInstances)
	policy.ScaleUpThreshold = utils.PtrValue(spec.ScaleUpThreshold, policy.ScaleUpThreshold)
	policy.ScaleDownThreshold = utils.PtrValue(spec.ScaleDownThreshold, policy.ScaleDownThreshold)
	policy.CooldownSeconds = utils.PtrValue(spec.CooldownSeconds, policy.CooldownSeconds)
	policy.Metric = utils.PtrValue(spec.Metric, policy.Metric)
	policy.Enabled = utils.PtrValue(spec.Enabled, policy.Enabled)

	if err := validatePolicy(&policy); err != nil {
		return nil, err
	}

	if existing == nil {
		policy.ID = utils.GenerateShortID()
		policy.ModuleID = moduleID
		if err := s.db.WithContext(ctx).Create(&policy).Error; err != nil {
			return nil, err
		}
		log.Printf("Scaling policy created for module %s", moduleID)
		return &policy, nil
	}

	err = s.db.WithContext(ctx).Model(&models.ScalingPolicy{}).Where("id = ?", policy.ID).
		Updates(map[string]interface{}{
			"minInstances":       policy.MinInstances,
			"maxInstances":       policy.MaxInstances,
			"scaleUpThreshold":   policy.ScaleUpThreshold,
			"scaleDownThreshold": policy.ScaleDownThreshold,
			"cooldownSeconds":    policy.CooldownSeconds,
			"metric":             policy.Metric,
			"enabled":            policy.Enabled,
		}).Error
	if err != nil {
		return nil, err
	}
	log.Printf("Scaling policy updated for module %s", moduleID)
	return &policy, nil
}

// Get returns nil without error when the module has no policy.
func (s *ScalingPolicyStore) Get(ctx context.Context, moduleID string) (*models.ScalingPolicy, error) {
	var policy models.ScalingPolicy
	err := s.db.WithContext(ctx).Where("moduleId = ?", moduleID).First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *ScalingPolicyStore) Delete(ctx context.Context, moduleID string) error {
	policy, err := s.Get(ctx, moduleID)
	if err != nil {
		return err
	}
	if policy == nil {
		return ErrPolicyNotFound
	}
	if err := s.db.WithContext(ctx).Where("id = ?", policy.ID).Delete(&models.ScalingPolicy{}).Error; err != nil {
		return err
	}
	log.Printf("Scaling policy deleted for module %s", moduleID)
	return nil
}

func validatePolicy(p *models.ScalingPolicy) error {
	if p.MinInstances < 1 {
		return fmt.Errorf("minInstances must be >= 1: %w", ErrInvalidArgument)
	}
	if p.MaxInstances < 1 {
		return fmt.Errorf("maxInstances must be >= 1: %w", ErrInvalidArgument)
	}
	if p.MinInstances > p.MaxInstances {
		return fmt.Errorf("minInstances must be <= maxInstances: %w", ErrInvalidArgument)
	}
	if p.ScaleUpThreshold < 0 || p.ScaleUpThreshold > 100 {
		return fmt.Errorf("scaleUpThreshold must be between 0 and 100: %w", ErrInvalidArgument)
	}
	if p.ScaleDownThreshold < 0 || p.ScaleDownThreshold > 100 {
		return fmt.Errorf("scaleDownThreshold must be between 0 and 100: %w", ErrInvalidArgument)
	}
	if p.ScaleDownThreshold >= p.ScaleUpThreshold {
		return fmt.Errorf("scaleDownThreshold must be strictly less than scaleUpThreshold: %w", ErrInvalidArgument)
	}
	if p.CooldownSeconds < 0 {
		return fmt.Errorf("cooldownSeconds must be >= 0: %w", ErrInvalidArgument)
	}
	if !p.Metric.IsValid() {
		return fmt.Errorf("unknown scaling metric %q: %w", p.Metric, ErrInvalidArgument)
	}
	return nil
}
