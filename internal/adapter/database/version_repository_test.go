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

func setupVersionRepo(t *testing.T) (repository.VersionRepository, *gorm.DB) {
	t.Helper()
	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)
	return database.NewVersionRepository(db, logger), db
}

func newVersion(routeID string, logicBody string) *model.Version {
	return &model.Version{
		RouteID:   routeID,
		LogicType: model.LogicSQL,
		LogicBody: logicBody,
	}
}

func auditEntry(action model.AuditAction) *model.AuditEntry {
	return &model.AuditEntry{Action: action, Actor: "tester"}
}

func TestVersionRepository_CreateVersion(t *testing.T) {
	repo, db := setupVersionRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	t.Run("numbers are sequential from one", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			created, err := repo.CreateVersion(ctx, newVersion("route-1", "SELECT 1"), auditEntry(model.AuditVersionCreate))
			require.NoError(t, err)
			assert.Equal(t, i, created.Number)
			assert.True(t, created.IsCurrent)
		}
	})

	t.Run("exactly one current per route", func(t *testing.T) {
		var current int64
		err := db.Model(&model.VersionEntity{}).
			Where("route_id = ? AND is_current = ?", "route-1", true).
			Count(&current).Error
		require.NoError(t, err)
		assert.EqualValues(t, 1, current)

		// The newest version carries the flag
		got, err := repo.GetCurrentVersion(ctx, "route-1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Number)
	})

	t.Run("sequences are independent per route", func(t *testing.T) {
		created, err := repo.CreateVersion(ctx, newVersion("route-2", "SELECT 2"), auditEntry(model.AuditVersionCreate))
		require.NoError(t, err)
		assert.Equal(t, 1, created.Number)
	})

	t.Run("audit entry is written with the version", func(t *testing.T) {
		var count int64
		err := db.Model(&model.AuditEntity{}).
			Where("target_type = ? AND action = ?", model.AuditTargetVersion, string(model.AuditVersionCreate)).
			Count(&count).Error
		require.NoError(t, err)
		assert.EqualValues(t, 4, count)
	})

	t.Run("missing audit entry aborts the whole transaction", func(t *testing.T) {
		_, err := repo.CreateVersion(ctx, newVersion("route-3", "SELECT 3"), nil)
		require.Error(t, err)

		var count int64
		require.NoError(t, db.Model(&model.VersionEntity{}).
			Where("route_id = ?", "route-3").
			Count(&count).Error)
		assert.Zero(t, count, "no version row may survive a failed transaction")
	})
}

func TestVersionRepository_GetCurrentVersion(t *testing.T) {
	repo, db := setupVersionRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	t.Run("no versions yields ErrNoCurrentVersion", func(t *testing.T) {
		_, err := repo.GetCurrentVersion(ctx, "empty-route")
		assert.ErrorIs(t, err, repository.ErrNoCurrentVersion)
	})

	t.Run("falls back to highest number when flag is lost", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := repo.CreateVersion(ctx, newVersion("route-x", "SELECT 1"), auditEntry(model.AuditVersionCreate))
			require.NoError(t, err)
		}

		// Simulate a corrupted store with no current flag anywhere
		require.NoError(t, db.Model(&model.VersionEntity{}).
			Where("route_id = ?", "route-x").
			Update("is_current", false).Error)

		got, err := repo.GetCurrentVersion(ctx, "route-x")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Number)
	})
}

func TestVersionRepository_SetCurrent(t *testing.T) {
	repo, db := setupVersionRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateVersion(ctx, newVersion("route-1", "SELECT 1"), auditEntry(model.AuditVersionCreate))
		require.NoError(t, err)
	}

	t.Run("activates an older version", func(t *testing.T) {
		activated, err := repo.SetCurrent(ctx, "route-1", 1, auditEntry(model.AuditSetCurrent))
		require.NoError(t, err)
		assert.Equal(t, 1, activated.Number)
		assert.True(t, activated.IsCurrent)

		var current int64
		require.NoError(t, db.Model(&model.VersionEntity{}).
			Where("route_id = ? AND is_current = ?", "route-1", true).
			Count(&current).Error)
		assert.EqualValues(t, 1, current)

		got, err := repo.GetCurrentVersion(ctx, "route-1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Number)
	})

	t.Run("unknown number yields ErrVersionNotFound", func(t *testing.T) {
		_, err := repo.SetCurrent(ctx, "route-1", 99, auditEntry(model.AuditSetCurrent))
		assert.ErrorIs(t, err, repository.ErrVersionNotFound)
	})

	t.Run("activation does not mutate version content", func(t *testing.T) {
		v1, err := repo.GetVersion(ctx, "route-1", 1)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", v1.LogicBody)
		assert.Equal(t, model.LogicSQL, v1.LogicType)
	})
}

func TestVersionRepository_VersionContentRoundTrip(t *testing.T) {
	repo, _ := setupVersionRepo(t)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	minLen := 2
	version := &model.Version{
		RouteID:   "route-1",
		LogicType: model.LogicSQL,
		LogicBody: "SELECT * FROM users WHERE name = :name",
		RequestSchema: map[string]model.FieldSpec{
			"name": {Type: "string", Required: true, MinLength: &minLen},
		},
		LogicConfig:      model.LogicConfig{TimeoutSeconds: 10, MaxRows: 50},
		ResponseTemplate: map[string]interface{}{"data": "$result", "total": "$result_count"},
		StatusCodes:      model.StatusCodes{Success: 200, NotFound: 404},
		SampleParams:     map[string]interface{}{"name": "alice"},
		ChangeNote:       "initial",
	}

	created, err := repo.CreateVersion(ctx, version, auditEntry(model.AuditVersionCreate))
	require.NoError(t, err)

	loaded, err := repo.GetVersion(ctx, "route-1", created.Number)
	require.NoError(t, err)

	assert.Equal(t, version.LogicBody, loaded.LogicBody)
	require.Contains(t, loaded.RequestSchema, "name")
	assert.True(t, loaded.RequestSchema["name"].Required)
	require.NotNil(t, loaded.RequestSchema["name"].MinLength)
	assert.Equal(t, 2, *loaded.RequestSchema["name"].MinLength)
	assert.Equal(t, 10, loaded.LogicConfig.TimeoutSeconds)
	assert.Equal(t, "$result", loaded.ResponseTemplate["data"])
	assert.Equal(t, 404, loaded.StatusCodes.NotFound)
	assert.Equal(t, "initial", loaded.ChangeNote)
}
