package database_test

import (
	"testing"
	"time"

	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepository_RecordAndQuery(t *testing.T) {
	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)
	repo := database.NewAuditRepository(db, logger)
	ctx, cancel := testutils.ContextWithTimeout(t)
	defer cancel()

	entries := []*model.AuditEntry{
		{
			TargetType:  model.AuditTargetRoute,
			TargetID:    "route-1",
			Action:      model.AuditCreate,
			NewValue:    map[string]interface{}{"name": "first"},
			Actor:       "admin",
			ActorIP:     "10.0.0.1",
			Description: "rota criada",
		},
		{
			TargetType: model.AuditTargetRoute,
			TargetID:   "route-1",
			Action:     model.AuditDeactivate,
			OldValue:   map[string]interface{}{"is_active": true},
			NewValue:   map[string]interface{}{"is_active": false},
			Actor:      "admin",
		},
		{
			TargetType: model.AuditTargetVersion,
			TargetID:   "version-1",
			Action:     model.AuditVersionCreate,
			Actor:      "deployer",
		},
	}

	for _, entry := range entries {
		require.NoError(t, repo.Record(ctx, entry))
		// created_at has second precision on some backends
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("by target returns only that target", func(t *testing.T) {
		got, err := repo.GetByTarget(ctx, model.AuditTargetRoute, "route-1", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		// Most recent first
		assert.Equal(t, model.AuditDeactivate, got[0].Action)
		assert.Equal(t, model.AuditCreate, got[1].Action)

		// JSON values round-trip
		assert.Equal(t, map[string]interface{}{"is_active": false}, got[0].NewValue)
		assert.Equal(t, map[string]interface{}{"name": "first"}, got[1].NewValue)
	})

	t.Run("limit is applied", func(t *testing.T) {
		got, err := repo.GetByTarget(ctx, model.AuditTargetRoute, "route-1", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("recent spans all targets", func(t *testing.T) {
		got, err := repo.GetRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("ids and timestamps are filled", func(t *testing.T) {
		got, err := repo.GetRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotEmpty(t, got[0].ID)
		assert.False(t, got[0].CreatedAt.IsZero())
	})
}
