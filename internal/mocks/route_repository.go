package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
)

// MockRouteRepository é um mock para o repository.RouteRepository
type MockRouteRepository struct {
	mock.Mock
}

func (m *MockRouteRepository) GetRoutes(ctx context.Context) ([]*model.Route, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Route), args.Error(1)
}

func (m *MockRouteRepository) GetRoutesWithFilters(ctx context.Context, filter repository.RouteFilter) ([]*model.Route, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Route), args.Error(1)
}

func (m *MockRouteRepository) GetRouteByID(ctx context.Context, id string) (*model.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Route), args.Error(1)
}

func (m *MockRouteRepository) GetRouteByPathMethod(ctx context.Context, path, method string) (*model.Route, error) {
	args := m.Called(ctx, path, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Route), args.Error(1)
}

func (m *MockRouteRepository) AddRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error {
	args := m.Called(ctx, route, audit)
	return args.Error(0)
}

func (m *MockRouteRepository) UpdateRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error {
	args := m.Called(ctx, route, audit)
	return args.Error(0)
}

func (m *MockRouteRepository) SetActive(ctx context.Context, id string, active bool, audit *model.AuditEntry) error {
	args := m.Called(ctx, id, active, audit)
	return args.Error(0)
}

func (m *MockRouteRepository) SoftDelete(ctx context.Context, id string, audit *model.AuditEntry) error {
	args := m.Called(ctx, id, audit)
	return args.Error(0)
}

func (m *MockRouteRepository) Restore(ctx context.Context, id string, audit *model.AuditEntry) error {
	args := m.Called(ctx, id, audit)
	return args.Error(0)
}
