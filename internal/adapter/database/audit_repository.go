package database

import (
	"context"
	"encoding/json"
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

// AuditRepository implementa repository.AuditRepository
type AuditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuditRepository cria um novo repositório de auditoria
func NewAuditRepository(db *gorm.DB, logger *zap.Logger) repository.AuditRepository {
	tracer := otel.GetTracerProvider().Tracer("api-engine.repository.audit")

	return &AuditRepository{
		db:     db,
		logger: logger,
		tracer: tracer,
	}
}

// Record grava uma entrada avulsa de auditoria
func (r *AuditRepository) Record(ctx context.Context, entry *model.AuditEntry) error {
	ctx, span := r.tracer.Start(
		ctx,
		"AuditRepository.Record",
		trace.WithAttributes(
			attribute.String("db.operation", "insert"),
			attribute.String("db.table", "api_audit_log"),
			attribute.String("audit.action", string(entry.Action)),
			attribute.String("audit.target_type", entry.TargetType),
		),
	)
	defer span.End()

	entity, err := auditModelToEntity(entry)
	if err != nil {
		spanFail(span, "conversion error", err)
		return fmt.Errorf("falha ao converter entrada de auditoria: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		r.logger.Error("falha ao gravar auditoria",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		spanFail(span, "database error", err)
		return fmt.Errorf("falha ao gravar auditoria: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByTarget retorna as entradas de um alvo, mais recentes primeiro
func (r *AuditRepository) GetByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*model.AuditEntry, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"AuditRepository.GetByTarget",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_audit_log"),
			attribute.String("audit.target_type", targetType),
			attribute.String("audit.target_id", targetID),
			attribute.Int("audit.limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	var entities []model.AuditEntity
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error; err != nil {
		r.logger.Error("falha ao buscar auditoria", zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar auditoria: %w", err)
	}

	entries, err := auditEntitiesToModels(entities)
	if err != nil {
		spanFail(span, "conversion error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("audit.count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// GetRecent retorna as entradas mais recentes de todos os alvos
func (r *AuditRepository) GetRecent(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	ctx, span := r.tracer.Start(
		ctx,
		"AuditRepository.GetRecent",
		trace.WithAttributes(
			attribute.String("db.operation", "select"),
			attribute.String("db.table", "api_audit_log"),
			attribute.Int("audit.limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	var entities []model.AuditEntity
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error; err != nil {
		r.logger.Error("falha ao buscar auditoria recente", zap.Error(err))
		spanFail(span, "database error", err)
		return nil, fmt.Errorf("falha ao buscar auditoria: %w", err)
	}

	entries, err := auditEntitiesToModels(entities)
	if err != nil {
		spanFail(span, "conversion error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("audit.count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

// createAuditInTx grava a entrada de auditoria dentro da transação da
// mutação que ela descreve. O tipo e o id do alvo vêm da operação, não
// do chamador, para a trilha nunca apontar para o alvo errado.
func createAuditInTx(tx *gorm.DB, entry *model.AuditEntry, targetType, targetID string) error {
	if entry == nil {
		return fmt.Errorf("entrada de auditoria obrigatória para mutações")
	}

	entry.TargetType = targetType
	entry.TargetID = targetID

	entity, err := auditModelToEntity(entry)
	if err != nil {
		return fmt.Errorf("falha ao converter entrada de auditoria: %w", err)
	}

	return tx.Create(entity).Error
}

func auditEntitiesToModels(entities []model.AuditEntity) ([]*model.AuditEntry, error) {
	entries := make([]*model.AuditEntry, 0, len(entities))
	for _, entity := range entities {
		entry, err := auditEntityToModel(&entity)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// auditEntityToModel converte uma entidade em um modelo
func auditEntityToModel(entity *model.AuditEntity) (*model.AuditEntry, error) {
	var oldValue map[string]interface{}
	if err := parseJSONColumn(entity.OldValueJSON, &oldValue); err != nil {
		return nil, err
	}

	var newValue map[string]interface{}
	if err := parseJSONColumn(entity.NewValueJSON, &newValue); err != nil {
		return nil, err
	}

	return &model.AuditEntry{
		ID:          entity.ID,
		TargetType:  entity.TargetType,
		TargetID:    entity.TargetID,
		Action:      model.AuditAction(entity.Action),
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: entity.Description,
		Actor:       entity.Actor,
		ActorIP:     entity.ActorIP,
		CreatedAt:   entity.CreatedAt,
	}, nil
}

// auditModelToEntity converte um modelo em uma entidade
func auditModelToEntity(entry *model.AuditEntry) (*model.AuditEntity, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	oldJSON, err := json.Marshal(entry.OldValue)
	if err != nil {
		return nil, err
	}

	newJSON, err := json.Marshal(entry.NewValue)
	if err != nil {
		return nil, err
	}

	return &model.AuditEntity{
		ID:           entry.ID,
		TargetType:   entry.TargetType,
		TargetID:     entry.TargetID,
		Action:       string(entry.Action),
		OldValueJSON: string(oldJSON),
		NewValueJSON: string(newJSON),
		Description:  entry.Description,
		Actor:        entry.Actor,
		ActorIP:      entry.ActorIP,
	}, nil
}
