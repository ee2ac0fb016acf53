package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfardo/api-engine-go/internal/app/resolver"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"github.com/lfardo/api-engine-go/internal/mocks"
	"github.com/lfardo/api-engine-go/internal/testutils"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

func newResolver(t *testing.T) (*resolver.Resolver, *mocks.MockRouteRepository, *mocks.MockVersionRepository) {
	t.Helper()
	routes := new(mocks.MockRouteRepository)
	versions := new(mocks.MockVersionRepository)
	return resolver.NewResolver(routes, versions, testutils.TestLogger(t)), routes, versions
}

func intPtr(n int) *int { return &n }

func TestResolver_ResolveRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("ActiveRouteResolves", func(t *testing.T) {
		r, routes, _ := newResolver(t)
		routes.On("GetRouteByPathMethod", ctx, "users/list", "GET").
			Return(&model.Route{ID: "r1", Path: "users/list", Method: "GET", IsActive: true}, nil)

		route, err := r.ResolveRoute(ctx, "users/list", "GET")
		require.NoError(t, err)
		assert.Equal(t, "r1", route.ID)
		routes.AssertExpectations(t)
	})

	t.Run("UnknownRouteIsNotFound", func(t *testing.T) {
		r, routes, _ := newResolver(t)
		routes.On("GetRouteByPathMethod", ctx, "nope", "GET").
			Return(nil, repository.ErrRouteNotFound)

		_, err := r.ResolveRoute(ctx, "nope", "GET")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindRouteNotFound, apierrors.KindOf(err))
	})

	t.Run("InactiveRouteIsDisabledNotMissing", func(t *testing.T) {
		r, routes, _ := newResolver(t)
		routes.On("GetRouteByPathMethod", ctx, "users/list", "GET").
			Return(&model.Route{ID: "r1", Path: "users/list", Method: "GET", IsActive: false}, nil)

		_, err := r.ResolveRoute(ctx, "users/list", "GET")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindRouteDisabled, apierrors.KindOf(err))
	})
}

func TestResolver_ResolveVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("ExplicitPinFetchesThatVersion", func(t *testing.T) {
		r, _, versions := newResolver(t)
		versions.On("GetVersion", ctx, "r1", 2).
			Return(&model.Version{RouteID: "r1", Number: 2}, nil)

		version, err := r.ResolveVersion(ctx, "r1", intPtr(2))
		require.NoError(t, err)
		assert.Equal(t, 2, version.Number)
		versions.AssertExpectations(t)
	})

	t.Run("MissingPinnedVersionIsNotFound", func(t *testing.T) {
		r, _, versions := newResolver(t)
		versions.On("GetVersion", ctx, "r1", 9).
			Return(nil, repository.ErrVersionNotFound)

		_, err := r.ResolveVersion(ctx, "r1", intPtr(9))
		require.Error(t, err)
		assert.Equal(t, apierrors.KindVersionNotFound, apierrors.KindOf(err))
	})

	t.Run("NoPinUsesCurrentVersion", func(t *testing.T) {
		r, _, versions := newResolver(t)
		versions.On("GetCurrentVersion", ctx, "r1").
			Return(&model.Version{RouteID: "r1", Number: 3, IsCurrent: true}, nil)

		version, err := r.ResolveVersion(ctx, "r1", nil)
		require.NoError(t, err)
		assert.Equal(t, 3, version.Number)
	})

	t.Run("RouteWithoutVersionsIsAConfigurationProblem", func(t *testing.T) {
		r, _, versions := newResolver(t)
		versions.On("GetCurrentVersion", ctx, "r1").
			Return(nil, repository.ErrNoCurrentVersion)

		_, err := r.ResolveVersion(ctx, "r1", nil)
		require.Error(t, err)
		assert.Equal(t, apierrors.KindNoVersionDefined, apierrors.KindOf(err))
	})
}
