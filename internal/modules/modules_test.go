package modules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

// setupTestDB opens an in-memory database with the same naming strategy
// the server uses, so the raw column names in queries resolve identically.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
			NoLowerCase:   true,
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Module{},
		&models.ModuleRoute{},
		&models.ScalingPolicy{},
		&models.Deployment{},
	))
	return db
}

// fakeChannel records control calls and returns canned results.
type fakeChannel struct {
	mu sync.Mutex

	health  control.HealthSnapshot
	metrics control.Metrics

	configOK bool
	reloadOK bool
	startOK  bool
	stopOK   bool

	healthChecks int
	configPushes int
	reloads      int
	starts       int
	stops        int
	closed       bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		health: control.HealthSnapshot{
			Status:    control.HealthHealthy,
			LastCheck: time.Now().UTC(),
		},
		metrics:  control.Metrics{"cpu": 12.5, "memory": 48.0},
		configOK: true,
		reloadOK: true,
		startOK:  true,
		stopOK:   true,
	}
}

func (c *fakeChannel) HealthCheck(ctx context.Context) control.HealthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthChecks++
	return c.health
}

func (c *fakeChannel) GetMetrics(ctx context.Context) control.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *fakeChannel) UpdateConfig(ctx context.Context, config models.JSON) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configPushes++
	return c.configOK
}

func (c *fakeChannel) ReloadRoutes(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads++
	return c.reloadOK
}

func (c *fakeChannel) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.startOK
}

func (c *fakeChannel) Stop(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopOK
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeProvider hands out one fakeChannel per module id.
type fakeProvider struct {
	mu       sync.Mutex
	channels map[string]*fakeChannel
	dropped  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{channels: make(map[string]*fakeChannel)}
}

func (p *fakeProvider) GetChannel(moduleID string, host string, port int) control.Channel {
	return p.channelFor(moduleID)
}

func (p *fakeProvider) Drop(moduleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, moduleID)
	delete(p.channels, moduleID)
}

func (p *fakeProvider) channelFor(moduleID string) *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[moduleID]
	if !ok {
		ch = newFakeChannel()
		p.channels[moduleID] = ch
	}
	return ch
}

// eventRecorder captures notifications instead of publishing them.
type eventRecorder struct {
	mu           sync.Mutex
	moduleIDs    []string
	routeModules []string
	deployments  []string
}

func (r *eventRecorder) ModuleChanged(ctx context.Context, moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moduleIDs = append(r.moduleIDs, moduleID)
}

func (r *eventRecorder) RoutesChanged(ctx context.Context, moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routeModules = append(r.routeModules, moduleID)
}

func (r *eventRecorder) DeploymentChanged(ctx context.Context, moduleID, deploymentID, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deployments = append(r.deployments, event)
}

func mustJSON(t *testing.T, v interface{}) models.JSON {
	t.Helper()
	j, err := models.JSONFrom(v)
	require.NoError(t, err)
	return j
}

// createTestModule inserts a module directly, optionally with a control
// endpoint.
func createTestModule(t *testing.T, db *gorm.DB, name string, withEndpoint bool) *models.Module {
	t.Helper()

	module := models.Module{
		ID:           utils.GenerateShortID(),
		Name:         name,
		Type:         models.ModuleTypeL7HTTP,
		Status:       models.ModuleStatusDisabled,
		HealthStatus: control.HealthUnknown,
		Replicas:     1,
		CreatedBy:    "test-user",
	}
	if withEndpoint {
		module.ControlHost = utils.Ptr("10.0.0.5")
		module.ControlPort = utils.Ptr(9100)
	}
	require.NoError(t, db.Create(&module).Error)
	return &module
}
