package repository

import (
	"context"

	"github.com/lfardo/api-engine-go/internal/domain/model"
)

// AuditRepository define a interface para a trilha de auditoria.
// A trilha é append-only: não existem operações de atualização ou
// remoção. Escritas acopladas a mutações acontecem dentro da transação
// da mutação, via os métodos dos repositórios de rota e versão.
type AuditRepository interface {
	// Record grava uma entrada avulsa (fora de transação de mutação)
	Record(ctx context.Context, entry *model.AuditEntry) error

	// GetByTarget retorna as entradas de um alvo em ordem decrescente
	// de criação, limitadas a limit
	GetByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*model.AuditEntry, error)

	// GetRecent retorna as entradas mais recentes de todos os alvos
	GetRecent(ctx context.Context, limit int) ([]*model.AuditEntry, error)
}
