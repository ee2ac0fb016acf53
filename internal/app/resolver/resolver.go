package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// Resolver localiza a rota e a versão executável de uma requisição
// dinâmica. É livre de efeitos colaterais: só leitura e mapeamento dos
// erros do repositório para a taxonomia da API.
type Resolver struct {
	routes   repository.RouteRepository
	versions repository.VersionRepository
	logger   *zap.Logger
}

func NewResolver(routes repository.RouteRepository, versions repository.VersionRepository, logger *zap.Logger) *Resolver {
	return &Resolver{routes: routes, versions: versions, logger: logger}
}

// ResolveRoute resolve a identidade caminho+método para uma rota viva.
// Rotas removidas aparecem como inexistentes; rotas desativadas são
// distinguidas para que o chamador devolva indisponibilidade, não 404.
func (r *Resolver) ResolveRoute(ctx context.Context, path, method string) (*model.Route, error) {
	route, err := r.routes.GetRouteByPathMethod(ctx, path, method)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, apierrors.NewKind(apierrors.KindRouteNotFound,
				fmt.Sprintf("rota não encontrada: %s /%s",
					strings.ToUpper(method), strings.TrimPrefix(path, "/")), err)
		}
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"falha ao resolver rota", err)
	}

	if !route.IsActive {
		r.logger.Debug("requisição para rota desativada",
			zap.String("path", route.Path), zap.String("method", route.Method))
		return nil, apierrors.NewKind(apierrors.KindRouteDisabled,
			"rota temporariamente desativada", nil)
	}
	return route, nil
}

// ResolveVersion escolhe a versão executável da rota: o pin explícito
// quando informado, senão a corrente. O armazenamento já cai para a
// versão de maior número quando nenhuma está marcada como corrente.
func (r *Resolver) ResolveVersion(ctx context.Context, routeID string, explicit *int) (*model.Version, error) {
	if explicit != nil {
		version, err := r.versions.GetVersion(ctx, routeID, *explicit)
		if err != nil {
			if errors.Is(err, repository.ErrVersionNotFound) {
				return nil, apierrors.NewKind(apierrors.KindVersionNotFound,
					fmt.Sprintf("versão %d não existe para esta rota", *explicit), err)
			}
			return nil, apierrors.NewKind(apierrors.KindExecutionError,
				"falha ao buscar versão", err)
		}
		return version, nil
	}

	version, err := r.versions.GetCurrentVersion(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNoCurrentVersion) {
			return nil, apierrors.NewKind(apierrors.KindNoVersionDefined,
				"rota sem versão definida", err)
		}
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"falha ao buscar versão corrente", err)
	}
	return version, nil
}
