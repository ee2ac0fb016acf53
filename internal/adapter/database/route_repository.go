package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouteRepository implementa repository.RouteRepository
type RouteRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRouteRepository cria um novo repositório de rotas
func NewRouteRepository(db *gorm.DB, logger *zap.Logger) repository.RouteRepository {
	tracer := otel.GetTracerProvider().Tracer("api-engine.repository.route")

	return &RouteRepository{
		db:     db,
		logger: logger,
		tracer: tracer,
	}
}

// GetRoutes retorna todas as rotas não removidas
func (r *RouteRepository) GetRoutes(ctx context.Context) ([]*model.Route, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.GetRoutes",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_routes"),
		),
	)
	defer span.End()

	var entities []model.RouteEntity

	if err := r.db.WithContext(ctx).Where("is_deleted = ?", false).Find(&entities).Error; err != nil {
		r.logger.Error("falha ao buscar rotas", zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar rotas: %w", err)
	}

	routes := make([]*model.Route, 0, len(entities))
	for _, entity := range entities {
		route, err := routeEntityToModel(&entity)
		if err != nil {
			r.logger.Error("falha ao converter entidade para modelo", zap.Error(err))
			span.AddEvent("error.conversion",
				trace.WithAttributes(
					attribute.String("entity.path", entity.Path),
					attribute.String("error.message", err.Error()),
				),
			)
			continue
		}
		routes = append(routes, route)
	}

	span.SetAttributes(attribute.Int("routes.count", len(routes)))
	span.SetStatus(codes.Ok, "")
	return routes, nil
}

// GetRoutesWithFilters obtém rotas com filtros aplicados
func (r *RouteRepository) GetRoutesWithFilters(ctx context.Context, filter repository.RouteFilter) ([]*model.Route, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.GetRoutesWithFilters",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_routes"),
			attribute.String("filter.method", filter.Method),
			attribute.String("filter.tag", filter.Tag),
			attribute.Bool("filter.include_deleted", filter.IncludeDeleted),
			attribute.Bool("filter.only_active", filter.OnlyActive),
		),
	)
	defer span.End()

	query := r.db.WithContext(ctx)

	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", strings.ToUpper(filter.Method))
	}
	if filter.Tag != "" {
		// Tags são um array JSON serializado; a comparação por substring
		// com as aspas evita casar prefixos de outras tags
		query = query.Where("tags LIKE ?", "%\""+filter.Tag+"\"%")
	}

	var entities []model.RouteEntity
	if err := query.Order("path, method").Find(&entities).Error; err != nil {
		r.logger.Error("falha ao buscar rotas com filtros", zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar rotas: %w", err)
	}

	routes := make([]*model.Route, 0, len(entities))
	for _, entity := range entities {
		route, err := routeEntityToModel(&entity)
		if err != nil {
			r.logger.Error("falha ao converter entidade para modelo", zap.Error(err))
			span.AddEvent("error.conversion",
				trace.WithAttributes(
					attribute.String("entity.path", entity.Path),
					attribute.String("error.message", err.Error()),
				),
			)
			continue
		}
		routes = append(routes, route)
	}

	span.SetAttributes(attribute.Int("routes.count", len(routes)))
	span.SetStatus(codes.Ok, "")
	return routes, nil
}

// GetRouteByID obtém uma rota pelo identificador
func (r *RouteRepository) GetRouteByID(ctx context.Context, id string) (*model.Route, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.GetRouteByID",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.id", id),
		),
	)
	defer span.End()

	var entity model.RouteEntity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "route not found")
			span.SetAttributes(attribute.Bool("route.found", false))
			return nil, repository.ErrRouteNotFound
		}
		r.logger.Error("falha ao buscar rota por id", zap.String("id", id), zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar rota: %w", err)
	}

	span.SetAttributes(attribute.Bool("route.found", true))
	span.SetStatus(codes.Ok, "")
	return routeEntityToModel(&entity)
}

// GetRouteByPathMethod resolve a rota pela identidade caminho+método
func (r *RouteRepository) GetRouteByPathMethod(ctx context.Context, path, method string) (*model.Route, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.GetRouteByPathMethod",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.path", path),
			attribute.String("route.method", method),
		),
	)
	defer span.End()

	var entity model.RouteEntity
	err := r.db.WithContext(ctx).
		Where("path = ? AND method = ? AND is_deleted = ?", strings.TrimPrefix(path, "/"), strings.ToUpper(method), false).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "route not found")
			span.SetAttributes(attribute.Bool("route.found", false))
			return nil, repository.ErrRouteNotFound
		}
		r.logger.Error("falha ao resolver rota",
			zap.String("path", path),
			zap.String("method", method),
			zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao resolver rota: %w", err)
	}

	route, err := routeEntityToModel(&entity)
	if err != nil {
		spanFail(span, "conversion error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("route.found", true),
		attribute.Bool("route.is_active", route.IsActive),
	)
	span.SetStatus(codes.Ok, "")
	return route, nil
}

// AddRoute adiciona uma nova rota e sua entrada de auditoria na mesma
// transação
func (r *RouteRepository) AddRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.AddRoute",
		trace.WithAttributes(
			attribute.String("db.operation", "insert"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.path", route.Path),
			attribute.String("route.method", route.Method),
		),
	)
	defer span.End()

	route.Path = route.NormalizedPath()
	route.Method = strings.ToUpper(route.Method)
	if route.ID == "" {
		route.ID = uuid.NewString()
	}

	entity, err := routeModelToEntity(route)
	if err != nil {
		spanFail(span, "conversion error", err)
		return fmt.Errorf("falha ao converter modelo para entidade: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A identidade caminho+método só pode ter uma rota viva
		var count int64
		if err := tx.Model(&model.RouteEntity{}).
			Where("path = ? AND method = ? AND is_deleted = ?", route.Path, route.Method, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return repository.ErrRouteExists
		}

		if err := tx.Create(entity).Error; err != nil {
			return err
		}

		return createAuditInTx(tx, audit, model.AuditTargetRoute, route.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteExists) {
			span.SetStatus(codes.Error, "route already exists")
			return err
		}
		r.logger.Error("falha ao adicionar rota",
			zap.String("path", route.Path),
			zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao adicionar rota: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateRoute atualiza os metadados mutáveis de uma rota
func (r *RouteRepository) UpdateRoute(ctx context.Context, route *model.Route, audit *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.UpdateRoute",
		trace.WithAttributes(
			attribute.String("db.operation", "update"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.id", route.ID),
		),
	)
	defer span.End()

	tagsJSON, err := json.Marshal(route.Tags)
	if err != nil {
		spanFail(span, "conversion error", err)
		return err
	}
	originsJSON, err := json.Marshal(route.AllowedOrigins)
	if err != nil {
		spanFail(span, "conversion error", err)
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Identidade (path, method) não muda; apenas metadados
		result := tx.Model(&model.RouteEntity{}).
			Where("id = ? AND is_deleted = ?", route.ID, false).
			Updates(map[string]interface{}{
				"name":            route.Name,
				"description":     route.Description,
				"tags":            string(tagsJSON),
				"auth_required":   route.AuthRequired,
				"allowed_origins": string(originsJSON),
				"rate_limit":      route.RateLimit,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrRouteNotFound
		}

		return createAuditInTx(tx, audit, model.AuditTargetRoute, route.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			span.SetStatus(codes.Error, "route not found")
			return err
		}
		r.logger.Error("falha ao atualizar rota", zap.String("id", route.ID), zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao atualizar rota: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SetActive liga/desliga uma rota
func (r *RouteRepository) SetActive(ctx context.Context, id string, active bool, audit *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.SetActive",
		trace.WithAttributes(
			attribute.String("db.operation", "update"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.id", id),
			attribute.Bool("route.active", active),
		),
	)
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.RouteEntity{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Update("is_active", active)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrRouteNotFound
		}

		return createAuditInTx(tx, audit, model.AuditTargetRoute, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			span.SetStatus(codes.Error, "route not found")
			return err
		}
		r.logger.Error("falha ao alterar status da rota", zap.String("id", id), zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao alterar status da rota: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SoftDelete marca a rota como removida
func (r *RouteRepository) SoftDelete(ctx context.Context, id string, audit *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.SoftDelete",
		trace.WithAttributes(
			attribute.String("db.operation", "update"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.id", id),
		),
	)
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.RouteEntity{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"is_active":  false,
				"deleted_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repository.ErrRouteNotFound
		}

		return createAuditInTx(tx, audit, model.AuditTargetRoute, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			span.SetStatus(codes.Error, "route not found")
			return err
		}
		r.logger.Error("falha ao remover rota", zap.String("id", id), zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao remover rota: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Restore reativa uma rota removida
func (r *RouteRepository) Restore(ctx context.Context, id string, audit *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"RouteRepository.Restore",
		trace.WithAttributes(
			attribute.String("db.operation", "update"),
			attribute.String("db.table", "api_routes"),
			attribute.String("route.id", id),
		),
	)
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity model.RouteEntity
		if err := tx.Where("id = ? AND is_deleted = ?", id, true).First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRouteNotFound
			}
			return err
		}

		// A identidade pode ter sido reutilizada depois da remoção
		var count int64
		if err := tx.Model(&model.RouteEntity{}).
			Where("path = ? AND method = ? AND is_deleted = ? AND id <> ?", entity.Path, entity.Method, false, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return repository.ErrRouteExists
		}

		result := tx.Model(&model.RouteEntity{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_deleted": false,
				"is_active":  true,
				"deleted_at": time.Time{},
			})
		if result.Error != nil {
			return result.Error
		}

		return createAuditInTx(tx, audit, model.AuditTargetRoute, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) || errors.Is(err, repository.ErrRouteExists) {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		r.logger.Error("falha ao restaurar rota", zap.String("id", id), zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao restaurar rota: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// routeEntityToModel converte uma entidade em um modelo
func routeEntityToModel(entity *model.RouteEntity) (*model.Route, error) {
	var tags []string
	if err := parseJSONColumn(entity.TagsJSON, &tags); err != nil {
		return nil, err
	}

	var origins []string
	if err := parseJSONColumn(entity.AllowedOriginsJSON, &origins); err != nil {
		return nil, err
	}

	return &model.Route{
		ID:             entity.ID,
		Path:           entity.Path,
		Method:         entity.Method,
		Name:           entity.Name,
		Description:    entity.Description,
		Tags:           tags,
		IsActive:       entity.IsActive,
		IsDeleted:      entity.IsDeleted,
		AuthRequired:   entity.AuthRequired,
		AllowedOrigins: origins,
		RateLimit:      entity.RateLimit,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
		DeletedAt:      entity.DeletedAt,
		CreatedBy:      entity.CreatedBy,
	}, nil
}

// routeModelToEntity converte um modelo em uma entidade
func routeModelToEntity(route *model.Route) (*model.RouteEntity, error) {
	tagsJSON, err := json.Marshal(route.Tags)
	if err != nil {
		return nil, err
	}

	originsJSON, err := json.Marshal(route.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	return &model.RouteEntity{
		ID:                 route.ID,
		Path:               route.Path,
		Method:             route.Method,
		Name:               route.Name,
		Description:        route.Description,
		TagsJSON:           string(tagsJSON),
		IsActive:           route.IsActive,
		IsDeleted:          route.IsDeleted,
		AuthRequired:       route.AuthRequired,
		AllowedOriginsJSON: string(originsJSON),
		RateLimit:          route.RateLimit,
		DeletedAt:          route.DeletedAt,
		CreatedBy:          route.CreatedBy,
	}, nil
}

// parseJSONColumn deserializa uma coluna JSON tolerando valores vazios
func parseJSONColumn(raw string, dest interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// spanFail registra uma falha no span com a mensagem do erro
func spanFail(span trace.Span, status string, err error) {
	span.SetStatus(codes.Error, status)
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String("error.message", err.Error()),
	)
}
