package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lfardo/api-engine-go/internal/domain/model"
)

// MockVersionRepository é um mock para o repository.VersionRepository
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) GetVersions(ctx context.Context, routeID string) ([]*model.Version, error) {
	args := m.Called(ctx, routeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Version), args.Error(1)
}

func (m *MockVersionRepository) GetVersion(ctx context.Context, routeID string, number int) (*model.Version, error) {
	args := m.Called(ctx, routeID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) GetCurrentVersion(ctx context.Context, routeID string) (*model.Version, error) {
	args := m.Called(ctx, routeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) CreateVersion(ctx context.Context, version *model.Version, audit *model.AuditEntry) (*model.Version, error) {
	args := m.Called(ctx, version, audit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) SetCurrent(ctx context.Context, routeID string, number int, audit *model.AuditEntry) (*model.Version, error) {
	args := m.Called(ctx, routeID, number, audit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Version), args.Error(1)
}

func (m *MockVersionRepository) CountByRoute(ctx context.Context, routeID string) (int64, error) {
	args := m.Called(ctx, routeID)
	return args.Get(0).(int64), args.Error(1)
}
