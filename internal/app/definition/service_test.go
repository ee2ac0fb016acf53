package definition_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/internal/app/definition"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/internal/mocks"
	"github.com/lfardo/api-engine-go/internal/testutils"
	"github.com/lfardo/api-engine-go/pkg/cache"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var actor = definition.Actor{Name: "tester", IP: "127.0.0.1"}

type testRepos struct {
	routes   repository.RouteRepository
	versions repository.VersionRepository
	audits   repository.AuditRepository
}

func newService(t *testing.T) (*definition.Service, *testRepos) {
	t.Helper()

	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)

	repos := &testRepos{
		routes:   database.NewRouteRepository(db, logger),
		versions: database.NewVersionRepository(db, logger),
		audits:   database.NewAuditRepository(db, logger),
	}
	analyzer := security.NewAnalyzer(config.SecurityConfig{
		MaxRiskLevel: "safe",
		DefaultLimit: 1000,
	}, logger)
	store := cache.NewMemoryCache(time.Minute, time.Minute, nil, logger)

	svc, err := definition.NewService(repos.routes, repos.versions, repos.audits, analyzer, store, nil, logger)
	require.NoError(t, err)
	return svc, repos
}

func newRoute(path, method, name string) *model.Route {
	return &model.Route{Path: path, Method: method, Name: name}
}

func sqlVersion(routeID, body string) *model.Version {
	return &model.Version{RouteID: routeID, LogicType: model.LogicSQL, LogicBody: body}
}

func requireStatus(t *testing.T, err error, code int) {
	t.Helper()
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, code, apiErr.Code)
}

func TestService_CreateRoute(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	t.Run("creates an active route and audits it", func(t *testing.T) {
		created, err := svc.CreateRoute(ctx, newRoute("/orders/list", "get", "list-orders"), actor)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.IsActive)
		assert.Equal(t, "orders/list", created.Path)
		assert.Equal(t, "GET", created.Method)
		assert.Equal(t, "tester", created.CreatedBy)

		trail, err := svc.AuditTrail(ctx, model.AuditTargetRoute, created.ID, 10)
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Equal(t, model.AuditCreate, trail[0].Action)
		assert.Equal(t, "tester", trail[0].Actor)
		assert.Equal(t, "127.0.0.1", trail[0].ActorIP)
	})

	t.Run("rejects a second live route with the same identity", func(t *testing.T) {
		_, err := svc.CreateRoute(ctx, newRoute("orders/list", "GET", "other-name"), actor)
		requireStatus(t, err, http.StatusConflict)
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		_, err := svc.CreateRoute(ctx, newRoute("orders/list", "GET", ""), actor)
		requireStatus(t, err, http.StatusBadRequest)

		_, err = svc.CreateRoute(ctx, newRoute("orders/new", "CONNECT", "bad-method"), actor)
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("recreating a deleted identity restores the original route", func(t *testing.T) {
		original, err := svc.CreateRoute(ctx, newRoute("reports/pdf", "POST", "pdf-v1"), actor)
		require.NoError(t, err)
		require.NoError(t, svc.DeleteRoute(ctx, original.ID, actor))

		recreated, err := svc.CreateRoute(ctx, newRoute("reports/pdf", "POST", "pdf-v2"), actor)
		require.NoError(t, err)

		// Same row comes back, the new payload's metadata is ignored
		assert.Equal(t, original.ID, recreated.ID)
		assert.Equal(t, "pdf-v1", recreated.Name)
		assert.True(t, recreated.IsActive)
		assert.False(t, recreated.IsDeleted)

		trail, err := svc.AuditTrail(ctx, model.AuditTargetRoute, original.ID, 10)
		require.NoError(t, err)
		actions := auditActions(trail)
		assert.Contains(t, actions, model.AuditRestore)
		assert.Contains(t, actions, model.AuditDelete)
	})
}

func TestService_ListRoutes(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	for i, def := range []struct {
		path, method string
	}{
		{"users/list", "GET"},
		{"users/detail", "GET"},
		{"users/create", "POST"},
	} {
		_, err := svc.CreateRoute(ctx, newRoute(def.path, def.method, fmt.Sprintf("route-%d", i)), actor)
		require.NoError(t, err)
	}

	t.Run("paginates", func(t *testing.T) {
		page, err := svc.ListRoutes(ctx, repository.RouteFilter{}, 1, 2)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 3, page.Total)

		page, err = svc.ListRoutes(ctx, repository.RouteFilter{}, 2, 2)
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)

		// Pages past the end are empty, not an error
		page, err = svc.ListRoutes(ctx, repository.RouteFilter{}, 9, 2)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 3, page.Total)
	})

	t.Run("filters by method", func(t *testing.T) {
		page, err := svc.ListRoutes(ctx, repository.RouteFilter{Method: "POST"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("mutations invalidate the cached listing", func(t *testing.T) {
		before, err := svc.ListRoutes(ctx, repository.RouteFilter{}, 1, 10)
		require.NoError(t, err)

		_, err = svc.CreateRoute(ctx, newRoute("users/delete", "DELETE", "delete-user"), actor)
		require.NoError(t, err)

		after, err := svc.ListRoutes(ctx, repository.RouteFilter{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, before.Total+1, after.Total)
	})
}

func TestService_CacheFailuresDegrade(t *testing.T) {
	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)
	analyzer := security.NewAnalyzer(config.SecurityConfig{MaxRiskLevel: "safe", DefaultLimit: 1000}, logger)

	// A cache that errors on every operation must never break the
	// catalog; reads fall through to the database
	failing := new(mocks.MockCache)
	failing.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, fmt.Errorf("redis down"), nil)
	failing.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("redis down"))
	failing.On("ClearPrefix", mock.Anything, mock.Anything).Return(fmt.Errorf("redis down"))

	svc, err := definition.NewService(
		database.NewRouteRepository(db, logger),
		database.NewVersionRepository(db, logger),
		database.NewAuditRepository(db, logger),
		analyzer, failing, nil, logger)
	require.NoError(t, err)

	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	_, err = svc.CreateRoute(ctx, newRoute("inventory/items", "GET", "inventory"), actor)
	require.NoError(t, err)

	page, err := svc.ListRoutes(ctx, repository.RouteFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	failing.AssertExpectations(t)
}

func TestService_UpdateRoute(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("stats/daily", "GET", "daily-stats"), actor)
	require.NoError(t, err)

	t.Run("applies a partial patch", func(t *testing.T) {
		name := "daily-stats-v2"
		rateLimit := 50
		updated, err := svc.UpdateRoute(ctx, route.ID, definition.RoutePatch{
			Name:      &name,
			RateLimit: &rateLimit,
			Tags:      []string{"stats", "v2"},
		}, actor)
		require.NoError(t, err)
		assert.Equal(t, "daily-stats-v2", updated.Name)
		assert.Equal(t, 50, updated.RateLimit)
		assert.Equal(t, []string{"stats", "v2"}, updated.Tags)

		persisted, err := svc.GetRoute(ctx, route.ID)
		require.NoError(t, err)
		assert.Equal(t, "daily-stats-v2", persisted.Name)
		assert.Equal(t, 50, persisted.RateLimit)

		trail, err := svc.AuditTrail(ctx, model.AuditTargetRoute, route.ID, 10)
		require.NoError(t, err)
		update := findAction(t, trail, model.AuditUpdate)
		assert.Equal(t, "daily-stats", update.OldValue["name"])
		assert.Equal(t, "daily-stats-v2", update.NewValue["name"])
	})

	t.Run("rejects clearing the name", func(t *testing.T) {
		empty := ""
		_, err := svc.UpdateRoute(ctx, route.ID, definition.RoutePatch{Name: &empty}, actor)
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("updating a deleted route is not found", func(t *testing.T) {
		doomed, err := svc.CreateRoute(ctx, newRoute("stats/hourly", "GET", "hourly"), actor)
		require.NoError(t, err)
		require.NoError(t, svc.DeleteRoute(ctx, doomed.ID, actor))

		name := "renamed"
		_, err = svc.UpdateRoute(ctx, doomed.ID, definition.RoutePatch{Name: &name}, actor)
		requireStatus(t, err, http.StatusNotFound)
	})
}

func TestService_SetRouteStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("search/products", "GET", "product-search"), actor)
	require.NoError(t, err)

	disabled, err := svc.SetRouteStatus(ctx, route.ID, false, actor)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	enabled, err := svc.SetRouteStatus(ctx, route.ID, true, actor)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive)

	trail, err := svc.AuditTrail(ctx, model.AuditTargetRoute, route.ID, 10)
	require.NoError(t, err)
	actions := auditActions(trail)
	assert.Contains(t, actions, model.AuditDeactivate)
	assert.Contains(t, actions, model.AuditActivate)
}

func TestService_DeleteAndRestore(t *testing.T) {
	svc, repos := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("legacy/export", "GET", "legacy-export"), actor)
	require.NoError(t, err)

	t.Run("soft delete keeps the row inspectable", func(t *testing.T) {
		require.NoError(t, svc.DeleteRoute(ctx, route.ID, actor))

		got, err := svc.GetRoute(ctx, route.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
		assert.False(t, got.IsActive)
	})

	t.Run("restore brings the route back live", func(t *testing.T) {
		restored, err := svc.RestoreRoute(ctx, route.ID, actor)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)
		assert.True(t, restored.IsActive)
	})

	t.Run("restoring a live route is a bad request", func(t *testing.T) {
		_, err := svc.RestoreRoute(ctx, route.ID, actor)
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("restore is blocked when the identity was reused", func(t *testing.T) {
		require.NoError(t, svc.DeleteRoute(ctx, route.ID, actor))

		// Seed a replacement straight into storage; the service path
		// would restore the deleted row instead of creating a rival
		replacement := newRoute("legacy/export", "GET", "fresh")
		require.NoError(t, repos.routes.AddRoute(ctx, replacement, &model.AuditEntry{
			Action: model.AuditCreate,
			Actor:  "seeder",
		}))

		_, err := svc.RestoreRoute(ctx, route.ID, actor)
		requireStatus(t, err, http.StatusConflict)
	})
}

func TestService_CreateVersion(t *testing.T) {
	svc, repos := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("metrics/summary", "GET", "metrics-summary"), actor)
	require.NoError(t, err)

	t.Run("first version becomes current with number 1", func(t *testing.T) {
		created, err := svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 1 AS total"), actor)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Number)
		assert.True(t, created.IsCurrent)
		assert.Equal(t, "tester", created.CreatedBy)
	})

	t.Run("new versions flip the current flag", func(t *testing.T) {
		created, err := svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 2 AS total"), actor)
		require.NoError(t, err)
		assert.Equal(t, 2, created.Number)
		assert.True(t, created.IsCurrent)

		first, err := repos.versions.GetVersion(ctx, route.ID, 1)
		require.NoError(t, err)
		assert.False(t, first.IsCurrent)
	})

	t.Run("dangerous SQL is rejected at authoring time", func(t *testing.T) {
		before, err := repos.versions.CountByRoute(ctx, route.ID)
		require.NoError(t, err)

		_, err = svc.CreateVersion(ctx, sqlVersion(route.ID, "DROP TABLE users"), actor)
		require.Error(t, err)
		assert.Equal(t, apierrors.KindDangerousSQL, apierrors.KindOf(err))

		after, err := repos.versions.CountByRoute(ctx, route.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("multiple statements must use MULTI_SQL", func(t *testing.T) {
		_, err := svc.CreateVersion(ctx,
			sqlVersion(route.ID, "SELECT 1; SELECT 2; SELECT 3;"), actor)
		require.Error(t, err)
		assert.Equal(t, apierrors.KindMultipleStatements, apierrors.KindOf(err))
	})

	t.Run("dangerous sub query inside MULTI_SQL is rejected", func(t *testing.T) {
		version := &model.Version{
			RouteID:   route.ID,
			LogicType: model.LogicMultiSQL,
			LogicBody: `{"queries":[{"name":"ok","sql":"SELECT 1"},{"name":"bad","sql":"DELETE FROM users"}]}`,
		}
		_, err := svc.CreateVersion(ctx, version, actor)
		require.Error(t, err)
		assert.Equal(t, apierrors.KindDangerousSQL, apierrors.KindOf(err))
	})

	t.Run("documents violating the meta schema are rejected", func(t *testing.T) {
		version := sqlVersion(route.ID, "SELECT 1")
		version.RequestSchema = map[string]model.FieldSpec{
			"when": {Type: "datetime"},
		}
		_, err := svc.CreateVersion(ctx, version, actor)
		requireStatus(t, err, http.StatusBadRequest)
		assert.Contains(t, err.Error(), "documento de versão inválido")
	})

	t.Run("negative timeout violates the meta schema", func(t *testing.T) {
		version := sqlVersion(route.ID, "SELECT 1")
		version.LogicConfig = model.LogicConfig{TimeoutSeconds: -5}
		_, err := svc.CreateVersion(ctx, version, actor)
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("version for an unknown route is not found", func(t *testing.T) {
		_, err := svc.CreateVersion(ctx, sqlVersion("missing-route", "SELECT 1"), actor)
		requireStatus(t, err, http.StatusNotFound)
	})
}

func TestService_ActivateVersion(t *testing.T) {
	svc, repos := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("orders/recent", "GET", "recent-orders"), actor)
	require.NoError(t, err)

	_, err = svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 1 AS v"), actor)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 2 AS v"), actor)
	require.NoError(t, err)

	t.Run("marks an older version as current", func(t *testing.T) {
		activated, err := svc.ActivateVersion(ctx, route.ID, 1, actor)
		require.NoError(t, err)
		assert.Equal(t, 1, activated.Number)
		assert.True(t, activated.IsCurrent)

		current, err := repos.versions.GetCurrentVersion(ctx, route.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, current.Number)

		trail, err := svc.AuditTrail(ctx, model.AuditTargetVersion, activated.ID, 10)
		require.NoError(t, err)
		assert.Contains(t, auditActions(trail), model.AuditSetCurrent)
	})

	t.Run("activating a missing version is not found", func(t *testing.T) {
		_, err := svc.ActivateVersion(ctx, route.ID, 99, actor)
		requireStatus(t, err, http.StatusNotFound)
	})
}

func TestService_RollbackVersion(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := svc.CreateRoute(ctx, newRoute("items/list", "GET", "list-items"), actor)
	require.NoError(t, err)

	_, err = svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 'one' AS label"), actor)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 'two' AS label"), actor)
	require.NoError(t, err)

	t.Run("creates a new version copying the target", func(t *testing.T) {
		created, err := svc.RollbackVersion(ctx, route.ID, 1, actor)
		require.NoError(t, err)
		assert.Equal(t, 3, created.Number)
		assert.True(t, created.IsCurrent)
		assert.Equal(t, "SELECT 'one' AS label", created.LogicBody)
		assert.Equal(t, "rollback para a versão 1 (anterior: v2)", created.ChangeNote)

		trail, err := svc.AuditTrail(ctx, model.AuditTargetVersion, created.ID, 10)
		require.NoError(t, err)
		actions := auditActions(trail)
		assert.Contains(t, actions, model.AuditVersionCreate)
		assert.Contains(t, actions, model.AuditRollback)

		rollback := findAction(t, trail, model.AuditRollback)
		assert.EqualValues(t, 2, rollback.OldValue["from_version"])
		assert.EqualValues(t, 1, rollback.NewValue["to_version"])
		assert.EqualValues(t, 3, rollback.NewValue["new_version"])
	})

	t.Run("rollback to a missing version is not found", func(t *testing.T) {
		_, err := svc.RollbackVersion(ctx, route.ID, 42, actor)
		requireStatus(t, err, http.StatusNotFound)
	})
}

func TestService_AuditLimits(t *testing.T) {
	svc, repos := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	for i := 0; i < 25; i++ {
		require.NoError(t, repos.audits.Record(ctx, &model.AuditEntry{
			TargetType:  model.AuditTargetRoute,
			TargetID:    "route-x",
			Action:      model.AuditUpdate,
			Description: fmt.Sprintf("change %d", i),
			Actor:       "tester",
		}))
	}

	t.Run("zero limit falls back to the default", func(t *testing.T) {
		entries, err := svc.AuditTrail(ctx, model.AuditTargetRoute, "route-x", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 20)
	})

	t.Run("oversized limits are clamped", func(t *testing.T) {
		entries, err := svc.AuditTrail(ctx, model.AuditTargetRoute, "route-x", 1000)
		require.NoError(t, err)
		assert.Len(t, entries, 25)
	})

	t.Run("recent trail spans all targets", func(t *testing.T) {
		entries, err := svc.RecentAudit(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, entries, 5)
	})
}

func TestService_ExportImport(t *testing.T) {
	source, _ := newService(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	route, err := source.CreateRoute(ctx, newRoute("catalog/items", "GET", "catalog"), actor)
	require.NoError(t, err)
	_, err = source.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 1 AS v"), actor)
	require.NoError(t, err)
	_, err = source.CreateVersion(ctx, sqlVersion(route.ID, "SELECT 2 AS v"), actor)
	require.NoError(t, err)

	doc, err := source.Export(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Routes, 1)
	require.Len(t, doc.Routes[0].Versions, 2)

	// Versions come out ascending so a re-import rebuilds the sequence
	assert.Equal(t, 1, doc.Routes[0].Versions[0].Number)
	assert.Equal(t, 2, doc.Routes[0].Versions[1].Number)

	t.Run("survives a YAML round trip", func(t *testing.T) {
		data, contentType, err := definition.MarshalExport(doc, "yaml")
		require.NoError(t, err)
		assert.Equal(t, "application/x-yaml", contentType)

		parsed, err := definition.UnmarshalImport(data, "yaml")
		require.NoError(t, err)
		require.Len(t, parsed.Routes, 1)
		assert.Len(t, parsed.Routes[0].Versions, 2)
		assert.Equal(t, "catalog/items", parsed.Routes[0].Path)
	})

	t.Run("import recreates everything through the normal gates", func(t *testing.T) {
		target, targetRepos := newService(t)

		report, err := target.Import(ctx, doc, actor)
		require.NoError(t, err)
		assert.Equal(t, 1, report.RoutesCreated)
		assert.Equal(t, 2, report.VersionsCreated)
		assert.Empty(t, report.Errors)

		page, err := target.ListRoutes(ctx, repository.RouteFilter{}, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)

		imported := page.Items[0]
		count, err := targetRepos.versions.CountByRoute(ctx, imported.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		current, err := targetRepos.versions.GetCurrentVersion(ctx, imported.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Number)

		// Importing again over live identities is a no-op
		again, err := target.Import(ctx, doc, actor)
		require.NoError(t, err)
		assert.Equal(t, 1, again.RoutesSkipped)
		assert.Zero(t, again.VersionsCreated)
	})

	t.Run("empty documents are rejected", func(t *testing.T) {
		_, err := source.Import(ctx, &definition.ExportDocument{}, actor)
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func auditActions(entries []*model.AuditEntry) []model.AuditAction {
	actions := make([]model.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func findAction(t *testing.T, entries []*model.AuditEntry, action model.AuditAction) *model.AuditEntry {
	t.Helper()
	for _, e := range entries {
		if e.Action == action {
			return e
		}
	}
	t.Fatalf("audit trail has no %s entry", action)
	return nil
}
