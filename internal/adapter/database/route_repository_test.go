package database_test

import (
	"testing"

	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"github.com/lfardo/api-engine-go/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRouteRepo(t *testing.T) (repository.RouteRepository, *gorm.DB) {
	t.Helper()
	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)
	return database.NewRouteRepository(db, logger), db
}

func newRoute(path, method, name string) *model.Route {
	return &model.Route{
		Path:     path,
		Method:   method,
		Name:     name,
		IsActive: true,
	}
}

func TestRouteRepository_AddRoute(t *testing.T) {
	repo, db := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	t.Run("creates route with normalized identity", func(t *testing.T) {
		route := newRoute("/users/list", "get", "list-users")
		err := repo.AddRoute(ctx, route, auditEntry(model.AuditCreate))
		require.NoError(t, err)
		assert.NotEmpty(t, route.ID)

		// Stored without leading slash and with upper-cased method
		got, err := repo.GetRouteByPathMethod(ctx, "users/list", "GET")
		require.NoError(t, err)
		assert.Equal(t, "users/list", got.Path)
		assert.Equal(t, "GET", got.Method)
	})

	t.Run("lookup tolerates a leading slash", func(t *testing.T) {
		got, err := repo.GetRouteByPathMethod(ctx, "/users/list", "GET")
		require.NoError(t, err)
		assert.Equal(t, "list-users", got.Name)
	})

	t.Run("same identity is rejected", func(t *testing.T) {
		err := repo.AddRoute(ctx, newRoute("users/list", "GET", "dup"), auditEntry(model.AuditCreate))
		assert.ErrorIs(t, err, repository.ErrRouteExists)
	})

	t.Run("same path with another method is a distinct route", func(t *testing.T) {
		err := repo.AddRoute(ctx, newRoute("users/list", "POST", "create-user"), auditEntry(model.AuditCreate))
		require.NoError(t, err)
	})

	t.Run("audit entry is written in the same transaction", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&model.AuditEntity{}).
			Where("target_type = ? AND action = ?", model.AuditTargetRoute, string(model.AuditCreate)).
			Count(&count).Error)
		assert.EqualValues(t, 2, count)
	})
}

func TestRouteRepository_SoftDelete(t *testing.T) {
	repo, _ := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route := newRoute("orders/recent", "GET", "recent-orders")
	require.NoError(t, repo.AddRoute(ctx, route, auditEntry(model.AuditCreate)))

	t.Run("deleted route disappears from resolution", func(t *testing.T) {
		require.NoError(t, repo.SoftDelete(ctx, route.ID, auditEntry(model.AuditDelete)))

		_, err := repo.GetRouteByPathMethod(ctx, "orders/recent", "GET")
		assert.ErrorIs(t, err, repository.ErrRouteNotFound)
	})

	t.Run("row survives for inspection by id", func(t *testing.T) {
		got, err := repo.GetRouteByID(ctx, route.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
		assert.False(t, got.IsActive)
		assert.False(t, got.DeletedAt.IsZero())
	})

	t.Run("identity is free for reuse", func(t *testing.T) {
		replacement := newRoute("orders/recent", "GET", "recent-orders-v2")
		require.NoError(t, repo.AddRoute(ctx, replacement, auditEntry(model.AuditCreate)))

		got, err := repo.GetRouteByPathMethod(ctx, "orders/recent", "GET")
		require.NoError(t, err)
		assert.Equal(t, "recent-orders-v2", got.Name)
	})

	t.Run("restore is blocked while the identity is taken", func(t *testing.T) {
		err := repo.Restore(ctx, route.ID, auditEntry(model.AuditRestore))
		assert.ErrorIs(t, err, repository.ErrRouteExists)
	})
}

func TestRouteRepository_Restore(t *testing.T) {
	repo, _ := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route := newRoute("reports/daily", "GET", "daily-report")
	require.NoError(t, repo.AddRoute(ctx, route, auditEntry(model.AuditCreate)))
	require.NoError(t, repo.SoftDelete(ctx, route.ID, auditEntry(model.AuditDelete)))

	require.NoError(t, repo.Restore(ctx, route.ID, auditEntry(model.AuditRestore)))

	got, err := repo.GetRouteByID(ctx, route.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.True(t, got.IsActive)
	assert.True(t, got.DeletedAt.IsZero())

	// Restored routes come back live and resolve again
	resolved, err := repo.GetRouteByPathMethod(ctx, "reports/daily", "GET")
	require.NoError(t, err)
	assert.Equal(t, route.ID, resolved.ID)
}

func TestRouteRepository_SetActive(t *testing.T) {
	repo, _ := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route := newRoute("stats/summary", "GET", "summary")
	require.NoError(t, repo.AddRoute(ctx, route, auditEntry(model.AuditCreate)))

	require.NoError(t, repo.SetActive(ctx, route.ID, false, auditEntry(model.AuditDeactivate)))

	// Disabled routes still resolve; the handler decides what to do
	got, err := repo.GetRouteByPathMethod(ctx, "stats/summary", "GET")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.SetActive(ctx, route.ID, true, auditEntry(model.AuditActivate)))
	got, err = repo.GetRouteByID(ctx, route.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestRouteRepository_UpdateRoute(t *testing.T) {
	repo, _ := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route := newRoute("items/search", "GET", "search-items")
	require.NoError(t, repo.AddRoute(ctx, route, auditEntry(model.AuditCreate)))

	route.Name = "search-items-v2"
	route.Description = "busca de itens"
	route.Tags = []string{"items", "search"}
	route.AuthRequired = true
	route.RateLimit = 60
	require.NoError(t, repo.UpdateRoute(ctx, route, auditEntry(model.AuditUpdate)))

	got, err := repo.GetRouteByID(ctx, route.ID)
	require.NoError(t, err)
	assert.Equal(t, "search-items-v2", got.Name)
	assert.Equal(t, []string{"items", "search"}, got.Tags)
	assert.True(t, got.AuthRequired)
	assert.Equal(t, 60, got.RateLimit)

	t.Run("unknown id yields ErrRouteNotFound", func(t *testing.T) {
		missing := newRoute("missing", "GET", "missing")
		missing.ID = "does-not-exist"
		err := repo.UpdateRoute(ctx, missing, auditEntry(model.AuditUpdate))
		assert.ErrorIs(t, err, repository.ErrRouteNotFound)
	})
}

func TestRouteRepository_Filters(t *testing.T) {
	repo, _ := setupRouteRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	first := newRoute("a/list", "GET", "a-list")
	first.Tags = []string{"reports"}
	require.NoError(t, repo.AddRoute(ctx, first, auditEntry(model.AuditCreate)))

	second := newRoute("b/create", "POST", "b-create")
	require.NoError(t, repo.AddRoute(ctx, second, auditEntry(model.AuditCreate)))

	third := newRoute("c/list", "GET", "c-list")
	require.NoError(t, repo.AddRoute(ctx, third, auditEntry(model.AuditCreate)))
	require.NoError(t, repo.SoftDelete(ctx, third.ID, auditEntry(model.AuditDelete)))

	t.Run("default excludes deleted", func(t *testing.T) {
		routes, err := repo.GetRoutesWithFilters(ctx, repository.RouteFilter{})
		require.NoError(t, err)
		assert.Len(t, routes, 2)
	})

	t.Run("include deleted", func(t *testing.T) {
		routes, err := repo.GetRoutesWithFilters(ctx, repository.RouteFilter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, routes, 3)
	})

	t.Run("by method", func(t *testing.T) {
		routes, err := repo.GetRoutesWithFilters(ctx, repository.RouteFilter{Method: "post"})
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.Equal(t, "b-create", routes[0].Name)
	})

	t.Run("by tag", func(t *testing.T) {
		routes, err := repo.GetRoutesWithFilters(ctx, repository.RouteFilter{Tag: "reports"})
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.Equal(t, "a-list", routes[0].Name)
	})
}
