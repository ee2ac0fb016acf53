package repository

import (
	"context"
	"errors"

	"github.com/lfardo/api-engine-go/internal/domain/model"
)

var (
	ErrVersionNotFound  = errors.New("version not found")
	ErrNoCurrentVersion = errors.New("route has no current version")
)

// VersionRepository define a interface para armazenamento de versões.
// Versões são imutáveis: não há Update nem Delete. Toda evolução é uma
// nova versão com número max+1 da rota.
type VersionRepository interface {
	// GetVersions retorna as versões de uma rota em ordem decrescente
	// de número
	GetVersions(ctx context.Context, routeID string) ([]*model.Version, error)

	// GetVersion obtém uma versão específica pelo número
	GetVersion(ctx context.Context, routeID string, number int) (*model.Version, error)

	// GetCurrentVersion obtém a versão corrente da rota. Se nenhuma
	// estiver marcada como corrente mas existirem versões, retorna a de
	// maior número. Sem versões, retorna ErrNoCurrentVersion.
	GetCurrentVersion(ctx context.Context, routeID string) (*model.Version, error)

	// CreateVersion insere uma nova versão com número max+1, marca-a
	// como corrente, desmarca as demais e grava a auditoria, tudo na
	// mesma transação. Retorna a versão criada com o número atribuído.
	CreateVersion(ctx context.Context, version *model.Version, audit *model.AuditEntry) (*model.Version, error)

	// SetCurrent marca a versão indicada como corrente e desmarca as
	// demais, na mesma transação da auditoria
	SetCurrent(ctx context.Context, routeID string, number int, audit *model.AuditEntry) (*model.Version, error)

	// CountByRoute informa quantas versões a rota possui
	CountByRoute(ctx context.Context, routeID string) (int64, error)
}
