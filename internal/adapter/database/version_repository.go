package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

// VersionRepository implementa repository.VersionRepository
type VersionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	tracer trace.Tracer
}

// NewVersionRepository cria um novo repositório de versões
func NewVersionRepository(db *gorm.DB, logger *zap.Logger) repository.VersionRepository {
	tracer := otel.GetTracerProvider().Tracer("api-engine.repository.version")

	return &VersionRepository{
		db:     db,
		logger: logger,
		tracer: tracer,
	}
}

// GetVersions retorna as versões de uma rota em ordem decrescente
func (r *VersionRepository) GetVersions(ctx context.Context, routeID string) ([]*model.Version, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.GetVersions",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", routeID),
		),
	)
	defer span.End()

	var entities []model.VersionEntity
	if err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("version_no DESC").
		Find(&entities).Error; err != nil {
		r.logger.Error("falha ao buscar versões", zap.String("routeID", routeID), zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar versões: %w", err)
	}

	versions := make([]*model.Version, 0, len(entities))
	for _, entity := range entities {
		version, err := versionEntityToModel(&entity)
		if err != nil {
			r.logger.Error("falha ao converter versão", zap.Error(err))
			span.AddEvent("error.conversion",
				trace.WithAttributes(
					attribute.Int("version.number", entity.Number),
					attribute.String("error.message", err.Error()),
				),
			)
			continue
		}
		versions = append(versions, version)
	}

	span.SetAttributes(attribute.Int("versions.count", len(versions)))
	span.SetStatus(codes.Ok, "")
	return versions, nil
}

// GetVersion obtém uma versão específica pelo número
func (r *VersionRepository) GetVersion(ctx context.Context, routeID string, number int) (*model.Version, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.GetVersion",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", routeID),
			attribute.Int("version.number", number),
		),
	)
	defer span.End()

	var entity model.VersionEntity
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND version_no = ?", routeID, number).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "version not found")
			span.SetAttributes(attribute.Bool("version.found", false))
			return nil, repository.ErrVersionNotFound
		}
		r.logger.Error("falha ao buscar versão",
			zap.String("routeID", routeID),
			zap.Int("number", number),
			zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar versão: %w", err)
	}

	span.SetAttributes(attribute.Bool("version.found", true))
	span.SetStatus(codes.Ok, "")
	return versionEntityToModel(&entity)
}

// GetCurrentVersion obtém a versão corrente da rota. Quando nenhuma
// linha carrega o flag de corrente mas existem versões, a de maior
// número responde e o log registra a inconsistência.
func (r *VersionRepository) GetCurrentVersion(ctx context.Context, routeID string) (*model.Version, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.GetCurrentVersion",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", routeID),
		),
	)
	defer span.End()

	var entity model.VersionEntity
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND is_current = ?", routeID, true).
		First(&entity).Error
	if err == nil {
		span.SetAttributes(attribute.Int("version.number", entity.Number))
		span.SetStatus(codes.Ok, "")
		return versionEntityToModel(&entity)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Error("falha ao buscar versão corrente", zap.String("routeID", routeID), zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar versão corrente: %w", err)
	}

	// Fallback: a versão de maior número
	err = r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("version_no DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "no versions defined")
			return nil, repository.ErrNoCurrentVersion
		}
		r.logger.Error("falha ao buscar versão corrente", zap.String("routeID", routeID), zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar versão corrente: %w", err)
	}

	r.logger.Warn("rota sem versão corrente marcada, usando a de maior número",
		zap.String("routeID", routeID),
		zap.Int("version", entity.Number))
	span.AddEvent("version.fallback",
		trace.WithAttributes(attribute.Int("version.number", entity.Number)))
	span.SetStatus(codes.Ok, "fallback to highest version")
	return versionEntityToModel(&entity)
}

// CreateVersion insere uma nova versão como corrente na mesma transação
// que desmarca as demais e grava a auditoria
func (r *VersionRepository) CreateVersion(ctx context.Context, version *model.Version, audit *model.AuditEntry) (*model.Version, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.CreateVersion",
		trace.WithAttributes(
			attribute.String("db.operation", "insert"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", version.RouteID),
			attribute.String("logic.type", string(version.LogicType)),
		),
	)
	defer span.End()

	if version.ID == "" {
		version.ID = uuid.NewString()
	}

	var created *model.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Próximo número na sequência da rota
		var maxNumber int
		if err := tx.Model(&model.VersionEntity{}).
			Where("route_id = ?", version.RouteID).
			Select("COALESCE(MAX(version_no), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}

		// Desmarcar a corrente anterior
		if err := tx.Model(&model.VersionEntity{}).
			Where("route_id = ?", version.RouteID).
			Update("is_current", false).Error; err != nil {
			return err
		}

		version.Number = maxNumber + 1
		version.IsCurrent = true

		entity, err := versionModelToEntity(version)
		if err != nil {
			return err
		}
		if err := tx.Create(entity).Error; err != nil {
			return err
		}

		if err := createAuditInTx(tx, audit, model.AuditTargetVersion, version.ID); err != nil {
			return err
		}

		created, err = versionEntityToModel(entity)
		return err
	})
	if err != nil {
		r.logger.Error("falha ao criar versão",
			zap.String("routeID", version.RouteID),
			zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao criar versão: %w", err)
	}

	span.SetAttributes(attribute.Int("version.number", created.Number))
	span.SetStatus(codes.Ok, "")
	return created, nil
}

// SetCurrent marca a versão indicada como corrente
func (r *VersionRepository) SetCurrent(ctx context.Context, routeID string, number int, audit *model.AuditEntry) (*model.Version, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.SetCurrent",
		trace.WithAttributes(
			attribute.String("db.operation", "update"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", routeID),
			attribute.Int("version.number", number),
		),
	)
	defer span.End()

	var target *model.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity model.VersionEntity
		if err := tx.Where("route_id = ? AND version_no = ?", routeID, number).
			First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrVersionNotFound
			}
			return err
		}

		if err := tx.Model(&model.VersionEntity{}).
			Where("route_id = ?", routeID).
			Update("is_current", false).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.VersionEntity{}).
			Where("id = ?", entity.ID).
			Update("is_current", true).Error; err != nil {
			return err
		}

		if err := createAuditInTx(tx, audit, model.AuditTargetVersion, entity.ID); err != nil {
			return err
		}

		entity.IsCurrent = true
		var err error
		target, err = versionEntityToModel(&entity)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			span.SetStatus(codes.Error, "version not found")
			return nil, err
		}
		r.logger.Error("falha ao ativar versão",
			zap.String("routeID", routeID),
			zap.Int("number", number),
			zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao ativar versão: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return target, nil
}

// CountByRoute informa quantas versões a rota possui
func (r *VersionRepository) CountByRoute(ctx context.Context, routeID string) (int64, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"VersionRepository.CountByRoute",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_versions"),
			attribute.String("route.id", routeID),
		),
	)
	defer span.End()

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.VersionEntity{}).
		Where("route_id = ?", routeID).
		Count(&count).Error; err != nil {
		spanFail(span, "database error", err)
		return 0, fmt.Errorf("falha ao contar versões: %w", err)
	}

	span.SetAttributes(attribute.Int64("versions.count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// versionEntityToModel converte uma entidade em um modelo
func versionEntityToModel(entity *model.VersionEntity) (*model.Version, error) {
	var schema map[string]model.FieldSpec
	if err := parseJSONColumn(entity.RequestSchemaJSON, &schema); err != nil {
		return nil, err
	}

	var logicConfig model.LogicConfig
	if err := parseJSONColumn(entity.LogicConfigJSON, &logicConfig); err != nil {
		return nil, err
	}

	var template map[string]interface{}
	if err := parseJSONColumn(entity.ResponseTemplateJSON, &template); err != nil {
		return nil, err
	}

	var statusCodes model.StatusCodes
	if err := parseJSONColumn(entity.StatusCodesJSON, &statusCodes); err != nil {
		return nil, err
	}

	var sampleParams map[string]interface{}
	if err := parseJSONColumn(entity.SampleParamsJSON, &sampleParams); err != nil {
		return nil, err
	}

	return &model.Version{
		ID:               entity.ID,
		RouteID:          entity.RouteID,
		Number:           entity.Number,
		IsCurrent:        entity.IsCurrent,
		RequestSchema:    schema,
		LogicType:        model.LogicType(entity.LogicType),
		LogicBody:        entity.LogicBody,
		LogicConfig:      logicConfig,
		ResponseTemplate: template,
		StatusCodes:      statusCodes,
		SampleParams:     sampleParams,
		ChangeNote:       entity.ChangeNote,
		CreatedAt:        entity.CreatedAt,
		CreatedBy:        entity.CreatedBy,
	}, nil
}

// versionModelToEntity converte um modelo em uma entidade
func versionModelToEntity(version *model.Version) (*model.VersionEntity, error) {
	schemaJSON, err := json.Marshal(version.RequestSchema)
	if err != nil {
		return nil, err
	}

	logicConfigJSON, err := json.Marshal(version.LogicConfig)
	if err != nil {
		return nil, err
	}

	templateJSON, err := json.Marshal(version.ResponseTemplate)
	if err != nil {
		return nil, err
	}

	statusCodesJSON, err := json.Marshal(version.StatusCodes)
	if err != nil {
		return nil, err
	}

	sampleParamsJSON, err := json.Marshal(version.SampleParams)
	if err != nil {
		return nil, err
	}

	return &model.VersionEntity{
		ID:                   version.ID,
		RouteID:              version.RouteID,
		Number:               version.Number,
		IsCurrent:            version.IsCurrent,
		RequestSchemaJSON:    string(schemaJSON),
		LogicType:            string(version.LogicType),
		LogicBody:            version.LogicBody,
		LogicConfigJSON:      string(logicConfigJSON),
		ResponseTemplateJSON: string(templateJSON),
		StatusCodesJSON:      string(statusCodesJSON),
		SampleParamsJSON:     string(sampleParamsJSON),
		ChangeNote:           version.ChangeNote,
		CreatedAt:            version.CreatedAt,
		CreatedBy:            version.CreatedBy,
	}, nil
}
