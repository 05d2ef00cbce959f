package modules

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeProvider, *eventRecorder) {
	t.Helper()
	db := setupTestDB(t)
	provider := newFakeProvider()
	events := &eventRecorder{}
	return NewRegistry(db, provider, events), provider, events
}

func TestModuleCreate(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	module, err := registry.Create(ctx, ModuleSpec{
		Name: "edge-http",
		Type: models.ModuleTypeL7HTTP,
	}, "test-user")
	require.NoError(t, err)

	assert.NotEmpty(t, module.ID)
	assert.Equal(t, models.ModuleStatusDisabled, module.Status)
	assert.False(t, module.Enabled)
	assert.Equal(t, control.HealthUnknown, module.HealthStatus)
	assert.Equal(t, 1, module.Replicas)
	assert.Equal(t, "test-user", module.CreatedBy)
}

func TestModuleCreateEnabledStartsAsStarting(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	module, err := registry.Create(context.Background(), ModuleSpec{
		Name:    "edge-http",
		Type:    models.ModuleTypeL7HTTP,
		Enabled: true,
	}, "test-user")
	require.NoError(t, err)
	assert.Equal(t, models.ModuleStatusStarting, module.Status)
}

func TestModuleCreateValidation(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Create(ctx, ModuleSpec{Name: "", Type: models.ModuleTypeL7HTTP}, "u")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	_, err = registry.Create(ctx, ModuleSpec{Name: string(long), Type: models.ModuleTypeL7HTTP}, "u")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = registry.Create(ctx, ModuleSpec{Name: "edge", Type: "l9_quantum"}, "u")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestModuleCreateDuplicateName(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Create(ctx, ModuleSpec{Name: "edge-http", Type: models.ModuleTypeL7HTTP}, "u")
	require.NoError(t, err)

	_, err = registry.Create(ctx, ModuleSpec{Name: "edge-http", Type: models.ModuleTypeL4TCP}, "u")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestModuleCreateDuplicateNameRace(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	db := registry.db
	ctx := context.Background()

	// A concurrent create that wins the race lands between the
	// duplicate pre-check and the insert; the unique-index violation
	// must still surface as a duplicate name.
	var once sync.Once
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("duplicateRace", func(tx *gorm.DB) {
			once.Do(func() {
				_, err := tx.Statement.ConnPool.ExecContext(context.Background(),
					"INSERT INTO Module (id, name, type, status, healthStatus, enabled, replicas, createdBy) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
					utils.GenerateShortID(), "edge-http", "l7_http", "disabled", "unknown", false, 1, "other-user")
				require.NoError(t, err)
			})
		}))
	defer db.Callback().Create().Remove("duplicateRace")

	_, err := registry.Create(ctx, ModuleSpec{Name: "edge-http", Type: models.ModuleTypeL7HTTP}, "u")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestModuleGetNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	_, err := registry.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestModuleList(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "bravo", "charlie"} {
		_, err := registry.Create(ctx, ModuleSpec{Name: name, Type: models.ModuleTypeL7HTTP}, "u")
		require.NoError(t, err)
	}
	_, err := registry.Create(ctx, ModuleSpec{Name: "delta", Type: models.ModuleTypeL7HTTP, Enabled: true}, "u")
	require.NoError(t, err)

	items, total, err := registry.List(ctx, 0, 10, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 4)

	enabled, total, err := registry.List(ctx, 0, 10, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, enabled, 1)
	assert.Equal(t, "delta", enabled[0].Name)

	page, total, err := registry.List(ctx, 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page, 2)
}

func TestModuleUpdatePushesConfig(t *testing.T) {
	registry, provider, events := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	updated, err := registry.Update(ctx, module.ID, ModulePatch{
		Config: mustJSON(t, map[string]int{"workers": 8}),
	}, "test-user")
	require.NoError(t, err)
	assert.NotNil(t, updated.Config)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 1, ch.configPushes)
	assert.Equal(t, []string{module.ID}, events.moduleIDs)
}

func TestModuleUpdateConfigPushFailureIsNotAnError(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)

	ch := provider.channelFor(module.ID)
	ch.configOK = false

	updated, err := registry.Update(context.Background(), module.ID, ModulePatch{
		Config: mustJSON(t, map[string]int{"workers": 2}),
	}, "test-user")
	require.NoError(t, err)
	assert.NotNil(t, updated.Config)
	assert.Equal(t, 1, ch.configPushes)
}

func TestModuleUpdateEndpointDropsCachedChannel(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)

	// Prime the cache with a channel dialed to the old address.
	stale := provider.channelFor(module.ID)

	_, err := registry.Update(context.Background(), module.ID, ModulePatch{
		ControlHost: utils.Ptr("10.0.0.9"),
	}, "test-user")
	require.NoError(t, err)

	assert.Equal(t, []string{module.ID}, provider.dropped)

	// The config push went to the channel dialed after the drop.
	assert.Equal(t, 0, stale.configPushes)
	fresh := provider.channelFor(module.ID)
	assert.Equal(t, 1, fresh.configPushes)
}

func TestModuleUpdateDescriptionOnlySkipsPush(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)

	_, err := registry.Update(context.Background(), module.ID, ModulePatch{
		Description: utils.Ptr("edge tier"),
	}, "test-user")
	require.NoError(t, err)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 0, ch.configPushes)
}

func TestModuleEnableDisable(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	enabled, err := registry.Enable(ctx, module.ID, "test-user")
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Equal(t, models.ModuleStatusStarting, enabled.Status)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 1, ch.starts)

	disabled, err := registry.Disable(ctx, module.ID, "test-user")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Equal(t, models.ModuleStatusStopping, disabled.Status)
	assert.Equal(t, 1, ch.stops)
}

func TestModuleEnableWithoutEndpoint(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", false)

	enabled, err := registry.Enable(context.Background(), module.ID, "test-user")
	require.NoError(t, err)
	assert.Equal(t, models.ModuleStatusStarting, enabled.Status)
	assert.Empty(t, provider.channels)
}

func TestModuleSoftDelete(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", false)
	ctx := context.Background()

	require.NoError(t, registry.Delete(ctx, module.ID, "test-user", false))

	kept, err := registry.Get(ctx, module.ID)
	require.NoError(t, err)
	assert.False(t, kept.Enabled)
	assert.Equal(t, models.ModuleStatusDisabled, kept.Status)
	assert.Empty(t, provider.dropped)
}

func TestModulePermanentDeleteCascades(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	route := models.ModuleRoute{
		ID:         utils.GenerateShortID(),
		ModuleID:   module.ID,
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
		Priority:   100,
		Enabled:    true,
	}
	require.NoError(t, db.Create(&route).Error)

	policy := models.ScalingPolicy{
		ID:                 utils.GenerateShortID(),
		ModuleID:           module.ID,
		MinInstances:       1,
		MaxInstances:       10,
		ScaleUpThreshold:   80,
		ScaleDownThreshold: 20,
		CooldownSeconds:    300,
		Metric:             models.ScalingMetricCPU,
		Enabled:            true,
	}
	require.NoError(t, db.Create(&policy).Error)

	deployment := models.Deployment{
		ID:         utils.GenerateShortID(),
		ModuleID:   module.ID,
		Version:    "1.0.0",
		Image:      "registry.local/proxy:1.0.0",
		Status:     models.DeploymentStatusPending,
		DeployedBy: "test-user",
	}
	require.NoError(t, db.Create(&deployment).Error)

	require.NoError(t, registry.Delete(ctx, module.ID, "test-user", true))

	_, err := registry.Get(ctx, module.ID)
	assert.ErrorIs(t, err, ErrModuleNotFound)

	var count int64
	require.NoError(t, db.Model(&models.ModuleRoute{}).Where("moduleId = ?", module.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.ScalingPolicy{}).Where("moduleId = ?", module.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.Deployment{}).Where("moduleId = ?", module.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.Equal(t, []string{module.ID}, provider.dropped)
}

func TestCheckHealthWithoutEndpoint(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", false)
	ctx := context.Background()

	snapshot, err := registry.CheckHealth(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, control.HealthUnknown, snapshot.Status)
	assert.Equal(t, "control endpoint not configured", snapshot.Error)

	// Nothing observed, nothing persisted.
	reloaded, err := registry.Get(ctx, module.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LastHealthCheck)
}

func TestCheckHealthPersistsSnapshot(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	snapshot, err := registry.CheckHealth(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, control.HealthHealthy, snapshot.Status)

	reloaded, err := registry.Get(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, control.HealthHealthy, reloaded.HealthStatus)
	assert.NotNil(t, reloaded.LastHealthCheck)
}

func TestCheckHealthReconcilesStartingModule(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	_, err := registry.Enable(ctx, module.ID, "test-user")
	require.NoError(t, err)

	_, err = registry.CheckHealth(ctx, module.ID)
	require.NoError(t, err)

	reloaded, err := registry.Get(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModuleStatusEnabled, reloaded.Status)
}

func TestCheckHealthFlagsUnhealthyModule(t *testing.T) {
	registry, provider, _ := newTestRegistry(t)
	db := registry.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	_, err := registry.Enable(ctx, module.ID, "test-user")
	require.NoError(t, err)

	ch := provider.channelFor(module.ID)
	ch.health = control.HealthSnapshot{Status: control.HealthUnhealthy, Error: "connection refused"}

	snapshot, err := registry.CheckHealth(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, control.HealthUnhealthy, snapshot.Status)

	reloaded, err := registry.Get(ctx, module.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModuleStatusError, reloaded.Status)
}

func TestModuleMetrics(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	db := registry.db
	ctx := context.Background()

	withEndpoint := createTestModule(t, db, "edge-http", true)
	metrics, err := registry.Metrics(ctx, withEndpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, metrics["cpu"])

	without := createTestModule(t, db, "edge-tcp", false)
	metrics, err = registry.Metrics(ctx, without.ID)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}
