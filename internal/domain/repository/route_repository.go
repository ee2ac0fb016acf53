package repository

import (
	"context"
	"errors"

	"github.com/lfardo/api-engine-go/internal/domain/model"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrRouteExists   = errors.New("route already exists")
)

// RouteFilter restringe listagens administrativas. Campos nil/vazios
// não filtram.
type RouteFilter struct {
	Method         string
	Tag            string
	IncludeDeleted bool
	OnlyActive     bool
}

// RouteRepository define a interface para armazenamento de rotas
type RouteRepository interface {
	// GetRoutes retorna todas as rotas não removidas
	GetRoutes(ctx context.Context) ([]*model.Route, error)

	// GetRoutesWithFilters obtém rotas com filtros aplicados
	GetRoutesWithFilters(ctx context.Context, filter RouteFilter) ([]*model.Route, error)

	// GetRouteByID obtém uma rota pelo identificador
	GetRouteByID(ctx context.Context, id string) (*model.Route, error)

	// GetRouteByPathMethod resolve a rota pela identidade caminho+método.
	// Rotas com is_deleted=true nunca são retornadas aqui.
	GetRouteByPathMethod(ctx context.Context, path, method string) (*model.Route, error)

	// AddRoute adiciona uma nova rota e grava a trilha de auditoria na
	// mesma transação
	AddRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error

	// UpdateRoute atualiza os metadados mutáveis de uma rota
	// (nome, descrição, tags, auth, origens, rate limit)
	UpdateRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error

	// SetActive liga/desliga uma rota sem tocar nas versões
	SetActive(ctx context.Context, id string, active bool, audit *model.AuditEntry) error

	// SoftDelete marca a rota como removida; a identidade caminho+método
	// fica livre para reuso
	SoftDelete(ctx context.Context, id string, audit *model.AuditEntry) error

	// Restore reativa uma rota removida, desde que a identidade não
	// tenha sido reutilizada
	Restore(ctx context.Context, id string, audit *model.AuditEntry) error
}
