package modules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxygrid/proxygrid/internal/models"
	"github.com/proxygrid/proxygrid/internal/utils"
)

func newTestRouteManager(t *testing.T) (*RouteManager, *fakeProvider, *eventRecorder) {
	t.Helper()
	db := setupTestDB(t)
	provider := newFakeProvider()
	events := &eventRecorder{}
	return NewRouteManager(db, provider, events), provider, events
}

func TestRouteCreate(t *testing.T) {
	manager, provider, events := newTestRouteManager(t)
	db := manager.db
	module := createTestModule(t, db, "edge-http", true)

	route, err := manager.Create(context.Background(), module.ID, RouteSpec{
		Name:          "api",
		MatchRules:    mustJSON(t, map[string]string{"pathPrefix": "/api"}),
		BackendConfig: mustJSON(t, map[string]string{"target": "api-pool"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 100, route.Priority)
	assert.True(t, route.Enabled)
	assert.Nil(t, route.RateLimit)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 1, ch.reloads)
	assert.Equal(t, []string{module.ID}, events.routeModules)
}

func TestRouteCreateForMissingModule(t *testing.T) {
	manager, provider, events := newTestRouteManager(t)

	_, err := manager.Create(context.Background(), "missing", RouteSpec{
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
	})
	assert.ErrorIs(t, err, ErrModuleNotFound)

	// Nothing was written and no reload was attempted.
	assert.Empty(t, provider.channels)
	assert.Empty(t, events.routeModules)
}

func TestRouteCreateValidation(t *testing.T) {
	manager, _, _ := newTestRouteManager(t)
	db := manager.db
	module := createTestModule(t, db, "edge-http", false)
	ctx := context.Background()

	_, err := manager.Create(ctx, module.ID, RouteSpec{
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = manager.Create(ctx, module.ID, RouteSpec{Name: "api"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = manager.Create(ctx, module.ID, RouteSpec{
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
		RateLimit:  utils.Ptr(-1.0),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRouteListEvaluationOrder(t *testing.T) {
	manager, _, _ := newTestRouteManager(t)
	db := manager.db
	module := createTestModule(t, db, "edge-http", false)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insert := func(name string, priority int, offset time.Duration) {
		route := models.ModuleRoute{
			ID:         utils.GenerateShortID(),
			ModuleID:   module.ID,
			Name:       name,
			MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/" + name}),
			Priority:   priority,
			Enabled:    true,
			CreatedAt:  base.Add(offset),
		}
		require.NoError(t, db.Create(&route).Error)
	}
	insert("catch-all", 10, 0)
	insert("api", 200, time.Minute)
	insert("admin", 200, 2*time.Minute)
	insert("static", 50, 3*time.Minute)

	items, total, err := manager.List(context.Background(), module.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, items, 4)

	// Priority descending, insertion order breaking ties.
	assert.Equal(t, "api", items[0].Name)
	assert.Equal(t, "admin", items[1].Name)
	assert.Equal(t, "static", items[2].Name)
	assert.Equal(t, "catch-all", items[3].Name)
}

func TestRouteUpdateTriggersReload(t *testing.T) {
	manager, provider, _ := newTestRouteManager(t)
	db := manager.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	route, err := manager.Create(ctx, module.ID, RouteSpec{
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
	})
	require.NoError(t, err)

	updated, err := manager.Update(ctx, route.ID, RoutePatch{
		Priority: utils.Ptr(250),
		Enabled:  utils.Ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, 250, updated.Priority)
	assert.False(t, updated.Enabled)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 2, ch.reloads)
}

func TestRouteUpdateNotFound(t *testing.T) {
	manager, _, _ := newTestRouteManager(t)
	_, err := manager.Update(context.Background(), "missing", RoutePatch{Priority: utils.Ptr(1)})
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRouteDeleteTriggersReload(t *testing.T) {
	manager, provider, _ := newTestRouteManager(t)
	db := manager.db
	module := createTestModule(t, db, "edge-http", true)
	ctx := context.Background()

	route, err := manager.Create(ctx, module.ID, RouteSpec{
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
	})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, route.ID))

	_, err = manager.Get(ctx, route.ID)
	assert.ErrorIs(t, err, ErrRouteNotFound)

	ch := provider.channelFor(module.ID)
	assert.Equal(t, 2, ch.reloads)
}

func TestRouteReloadIsAdvisory(t *testing.T) {
	manager, provider, _ := newTestRouteManager(t)
	db := manager.db
	ctx := context.Background()

	// No control endpoint: reload reports false, mutations still land.
	module := createTestModule(t, db, "edge-http", false)
	assert.False(t, manager.Reload(ctx, module.ID))

	route, err := manager.Create(ctx, module.ID, RouteSpec{
		Name:       "api",
		MatchRules: mustJSON(t, map[string]string{"pathPrefix": "/api"}),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, route.ID)

	// Failing reload on a reachable module is reported but not an error.
	reachable := createTestModule(t, db, "edge-tcp", true)
	provider.channelFor(reachable.ID).reloadOK = false
	assert.False(t, manager.Reload(ctx, reachable.ID))

	assert.False(t, manager.Reload(ctx, "missing"))
}
