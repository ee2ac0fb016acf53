package definition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/internal/infra/metrics"
	"github.com/lfardo/api-engine-go/pkg/cache"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

const (
	routeCachePrefix = "routes:"
	listCacheTTL     = 5 * time.Minute

	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// Actor identifica quem executa uma operação do plano administrativo.
// Toda mutação grava o ator na trilha de auditoria.
type Actor struct {
	Name string
	IP   string
}

// RoutePatch descreve uma atualização parcial dos metadados mutáveis de
// uma rota. Campos nil mantêm o valor atual; a identidade (path, method)
// nunca muda.
type RoutePatch struct {
	Name           *string  `json:"name,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	AuthRequired   *bool    `json:"auth_required,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	RateLimit      *int     `json:"rate_limit,omitempty"`
}

// RoutePage é uma página de rotas para o plano administrativo.
type RoutePage struct {
	Items    []*model.Route `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// Service implementa o plano administrativo de definições: rotas,
// versões e a trilha de auditoria. O plano de execução nunca passa por
// aqui; ele lê as definições direto dos repositórios.
type Service struct {
	routes        repository.RouteRepository
	versions      repository.VersionRepository
	audits        repository.AuditRepository
	analyzer      *security.Analyzer
	cache         cache.Cache
	metrics       *metrics.EngineMetrics
	logger        *zap.Logger
	versionSchema *jsonschema.Schema
}

// NewService cria o serviço de definições. O meta-esquema de versões é
// compilado uma única vez aqui.
func NewService(
	routes repository.RouteRepository,
	versions repository.VersionRepository,
	audits repository.AuditRepository,
	analyzer *security.Analyzer,
	cacheStore cache.Cache,
	engineMetrics *metrics.EngineMetrics,
	logger *zap.Logger,
) (*Service, error) {
	schema, err := compileVersionSchema()
	if err != nil {
		return nil, fmt.Errorf("falha ao compilar o meta-esquema de versões: %w", err)
	}

	return &Service{
		routes:        routes,
		versions:      versions,
		audits:        audits,
		analyzer:      analyzer,
		cache:         cacheStore,
		metrics:       engineMetrics,
		logger:        logger,
		versionSchema: schema,
	}, nil
}

// CreateRoute registra uma nova rota. Se a identidade (path, method)
// pertencer a uma rota removida, a rota antiga é restaurada com seus
// metadados originais em vez de criar uma duplicata.
func (s *Service) CreateRoute(ctx context.Context, route *model.Route, actor Actor) (*model.Route, error) {
	if err := route.Validate(); err != nil {
		return nil, apierrors.BadRequest(err.Error(), err)
	}

	existing, err := s.findByIdentity(ctx, route.NormalizedPath(), route.Method)
	if err != nil {
		return nil, apierrors.InternalServer("falha ao verificar identidade da rota", err)
	}
	if existing != nil {
		if !existing.IsDeleted {
			return nil, s.duplicateError(route)
		}
		return s.restoreOnRecreate(ctx, existing, actor)
	}

	if route.CreatedBy == "" {
		route.CreatedBy = actor.Name
	}
	route.IsActive = true

	newValue, _ := auditValue(route)
	audit := &model.AuditEntry{
		Action:      model.AuditCreate,
		NewValue:    newValue,
		Description: fmt.Sprintf("rota %s [%s] criada", route.NormalizedPath(), strings.ToUpper(route.Method)),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.AddRoute(ctx, route, audit); err != nil {
		if errors.Is(err, repository.ErrRouteExists) {
			return nil, s.duplicateError(route)
		}
		return nil, apierrors.InternalServer("falha ao criar rota", err)
	}

	s.invalidate(ctx)
	s.logger.Info("rota criada",
		zap.String("routeID", route.ID),
		zap.String("path", route.Path),
		zap.String("method", route.Method),
		zap.String("actor", actor.Name))
	return route, nil
}

// restoreOnRecreate reativa uma rota removida cuja identidade foi
// recriada. Os metadados originais são mantidos; o payload da recriação
// é ignorado.
func (s *Service) restoreOnRecreate(ctx context.Context, existing *model.Route, actor Actor) (*model.Route, error) {
	audit := &model.AuditEntry{
		Action:      model.AuditRestore,
		OldValue:    map[string]interface{}{"is_deleted": true, "is_active": false},
		NewValue:    map[string]interface{}{"is_deleted": false, "is_active": true},
		Description: fmt.Sprintf("rota %s [%s] restaurada por recriação", existing.Path, existing.Method),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.Restore(ctx, existing.ID, audit); err != nil {
		return nil, apierrors.InternalServer("falha ao restaurar rota", err)
	}

	s.invalidate(ctx)
	s.logger.Info("rota restaurada por recriação",
		zap.String("routeID", existing.ID),
		zap.String("path", existing.Path),
		zap.String("actor", actor.Name))
	return s.routes.GetRouteByID(ctx, existing.ID)
}

// ListRoutes lista rotas com filtros e paginação. A lista filtrada
// completa fica em cache; a paginação é feita em memória.
func (s *Service) ListRoutes(ctx context.Context, filter repository.RouteFilter, page, pageSize int) (*RoutePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	key := listCacheKey(filter)
	var routes []*model.Route

	found, err := s.cache.Get(ctx, key, &routes)
	if err != nil {
		s.logger.Warn("falha ao ler cache de rotas", zap.Error(err))
	}
	if !found {
		routes, err = s.routes.GetRoutesWithFilters(ctx, filter)
		if err != nil {
			return nil, apierrors.InternalServer("falha ao listar rotas", err)
		}
		if err := s.cache.Set(ctx, key, routes, listCacheTTL); err != nil {
			s.logger.Warn("falha ao gravar cache de rotas", zap.Error(err))
		}
	}

	return paginate(routes, page, pageSize), nil
}

// GetRoute retorna uma rota pelo identificador, inclusive removidas:
// o plano administrativo pode inspecionar qualquer linha.
func (s *Service) GetRoute(ctx context.Context, id string) (*model.Route, error) {
	route, err := s.routes.GetRouteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao buscar rota", err)
	}
	return route, nil
}

// UpdateRoute aplica uma atualização parcial dos metadados mutáveis.
func (s *Service) UpdateRoute(ctx context.Context, id string, patch RoutePatch, actor Actor) (*model.Route, error) {
	route, err := s.liveRoute(ctx, id)
	if err != nil {
		return nil, err
	}

	oldValue, _ := auditValue(route)

	if patch.Name != nil {
		route.Name = *patch.Name
	}
	if patch.Description != nil {
		route.Description = *patch.Description
	}
	if patch.Tags != nil {
		route.Tags = patch.Tags
	}
	if patch.AuthRequired != nil {
		route.AuthRequired = *patch.AuthRequired
	}
	if patch.AllowedOrigins != nil {
		route.AllowedOrigins = patch.AllowedOrigins
	}
	if patch.RateLimit != nil {
		route.RateLimit = *patch.RateLimit
	}

	if route.Name == "" {
		return nil, apierrors.BadRequest("name é obrigatório", nil)
	}

	newValue, _ := auditValue(route)
	audit := &model.AuditEntry{
		Action:      model.AuditUpdate,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: fmt.Sprintf("rota %s [%s] atualizada", route.Path, route.Method),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.UpdateRoute(ctx, route, audit); err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao atualizar rota", err)
	}

	s.invalidate(ctx)
	return route, nil
}

// SetRouteStatus liga ou desliga uma rota sem tocar nas versões.
func (s *Service) SetRouteStatus(ctx context.Context, id string, active bool, actor Actor) (*model.Route, error) {
	route, err := s.liveRoute(ctx, id)
	if err != nil {
		return nil, err
	}

	action := model.AuditActivate
	description := fmt.Sprintf("rota %s [%s] ativada", route.Path, route.Method)
	if !active {
		action = model.AuditDeactivate
		description = fmt.Sprintf("rota %s [%s] desativada", route.Path, route.Method)
	}

	audit := &model.AuditEntry{
		Action:      action,
		OldValue:    map[string]interface{}{"is_active": route.IsActive},
		NewValue:    map[string]interface{}{"is_active": active},
		Description: description,
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.SetActive(ctx, id, active, audit); err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao alterar status da rota", err)
	}

	s.invalidate(ctx)
	route.IsActive = active
	return route, nil
}

// DeleteRoute marca a rota como removida. A linha permanece no banco e
// a identidade fica livre para reuso.
func (s *Service) DeleteRoute(ctx context.Context, id string, actor Actor) error {
	route, err := s.liveRoute(ctx, id)
	if err != nil {
		return err
	}

	audit := &model.AuditEntry{
		Action:      model.AuditDelete,
		OldValue:    map[string]interface{}{"is_deleted": false, "is_active": route.IsActive},
		NewValue:    map[string]interface{}{"is_deleted": true, "is_active": false},
		Description: fmt.Sprintf("rota %s [%s] removida", route.Path, route.Method),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.SoftDelete(ctx, id, audit); err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return routeNotFound(err)
		}
		return apierrors.InternalServer("falha ao remover rota", err)
	}

	s.invalidate(ctx)
	s.logger.Info("rota removida",
		zap.String("routeID", id),
		zap.String("path", route.Path),
		zap.String("actor", actor.Name))
	return nil
}

// RestoreRoute reativa uma rota removida pelo identificador.
func (s *Service) RestoreRoute(ctx context.Context, id string, actor Actor) (*model.Route, error) {
	route, err := s.routes.GetRouteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao buscar rota", err)
	}
	if !route.IsDeleted {
		return nil, apierrors.BadRequest("rota não está removida", nil)
	}

	audit := &model.AuditEntry{
		Action:      model.AuditRestore,
		OldValue:    map[string]interface{}{"is_deleted": true, "is_active": false},
		NewValue:    map[string]interface{}{"is_deleted": false, "is_active": true},
		Description: fmt.Sprintf("rota %s [%s] restaurada", route.Path, route.Method),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	if err := s.routes.Restore(ctx, id, audit); err != nil {
		if errors.Is(err, repository.ErrRouteExists) {
			return nil, apierrors.New(http.StatusConflict,
				fmt.Sprintf("a identidade %s [%s] foi reutilizada por outra rota", route.Path, route.Method), err)
		}
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao restaurar rota", err)
	}

	s.invalidate(ctx)
	return s.routes.GetRouteByID(ctx, id)
}

// CreateVersion registra uma nova versão para a rota e a torna corrente.
// O documento passa pelo meta-esquema e, para lógica SQL, pelo portão do
// analisador de segurança antes de chegar ao banco.
func (s *Service) CreateVersion(ctx context.Context, version *model.Version, actor Actor) (*model.Version, error) {
	route, err := s.liveRoute(ctx, version.RouteID)
	if err != nil {
		return nil, err
	}

	if version.CreatedBy == "" {
		version.CreatedBy = actor.Name
	}

	if err := version.Validate(); err != nil {
		return nil, apierrors.BadRequest(err.Error(), err)
	}
	if err := s.validateVersionDocument(version); err != nil {
		return nil, err
	}
	if err := s.gateLogicBody(version.LogicType, version.LogicBody); err != nil {
		return nil, err
	}

	newValue, _ := auditValue(version)
	audit := &model.AuditEntry{
		Action:      model.AuditVersionCreate,
		NewValue:    newValue,
		Description: fmt.Sprintf("nova versão criada para %s [%s]", route.Path, route.Method),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	created, err := s.versions.CreateVersion(ctx, version, audit)
	if err != nil {
		return nil, apierrors.InternalServer("falha ao criar versão", err)
	}

	if s.metrics != nil {
		s.metrics.VersionEvent(string(model.AuditVersionCreate))
	}
	s.logger.Info("versão criada",
		zap.String("routeID", route.ID),
		zap.String("path", route.Path),
		zap.Int("version", created.Number),
		zap.String("logicType", string(created.LogicType)),
		zap.String("actor", actor.Name))
	return created, nil
}

// ListVersions retorna as versões da rota em ordem decrescente.
func (s *Service) ListVersions(ctx context.Context, routeID string) ([]*model.Version, error) {
	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}
	versions, err := s.versions.GetVersions(ctx, routeID)
	if err != nil {
		return nil, apierrors.InternalServer("falha ao listar versões", err)
	}
	return versions, nil
}

// GetVersion retorna uma versão específica da rota.
func (s *Service) GetVersion(ctx context.Context, routeID string, number int) (*model.Version, error) {
	version, err := s.versions.GetVersion(ctx, routeID, number)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, versionNotFound(number, err)
		}
		return nil, apierrors.InternalServer("falha ao buscar versão", err)
	}
	return version, nil
}

// ActivateVersion marca a versão indicada como corrente.
func (s *Service) ActivateVersion(ctx context.Context, routeID string, number int, actor Actor) (*model.Version, error) {
	audit := &model.AuditEntry{
		Action:      model.AuditSetCurrent,
		NewValue:    map[string]interface{}{"version": number},
		Description: fmt.Sprintf("versão %d marcada como corrente", number),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	version, err := s.versions.SetCurrent(ctx, routeID, number, audit)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, versionNotFound(number, err)
		}
		return nil, apierrors.InternalServer("falha ao ativar versão", err)
	}

	if s.metrics != nil {
		s.metrics.VersionEvent(string(model.AuditSetCurrent))
	}
	return version, nil
}

// RollbackVersion cria uma nova versão copiando o corpo da versão alvo.
// O histórico permanece intacto: rollback nunca reativa a versão antiga,
// sempre avança o número.
func (s *Service) RollbackVersion(ctx context.Context, routeID string, target int, actor Actor) (*model.Version, error) {
	source, err := s.versions.GetVersion(ctx, routeID, target)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, versionNotFound(target, err)
		}
		return nil, apierrors.InternalServer("falha ao buscar versão alvo", err)
	}

	fromNumber := 0
	if current, err := s.versions.GetCurrentVersion(ctx, routeID); err == nil {
		fromNumber = current.Number
	}

	copyVersion := &model.Version{
		RouteID:          routeID,
		RequestSchema:    source.RequestSchema,
		LogicType:        source.LogicType,
		LogicBody:        source.LogicBody,
		LogicConfig:      source.LogicConfig,
		ResponseTemplate: source.ResponseTemplate,
		StatusCodes:      source.StatusCodes,
		SampleParams:     source.SampleParams,
		ChangeNote:       fmt.Sprintf("rollback para a versão %d (anterior: v%d)", target, fromNumber),
		CreatedBy:        actor.Name,
	}

	createAudit := &model.AuditEntry{
		Action:      model.AuditVersionCreate,
		NewValue:    map[string]interface{}{"copied_from": target},
		Description: fmt.Sprintf("versão criada por rollback para a v%d", target),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}

	created, err := s.versions.CreateVersion(ctx, copyVersion, createAudit)
	if err != nil {
		return nil, apierrors.InternalServer("falha ao criar versão de rollback", err)
	}

	// Entrada própria de ROLLBACK além do VERSION_CREATE transacional
	rollbackAudit := &model.AuditEntry{
		TargetType:  model.AuditTargetVersion,
		TargetID:    created.ID,
		Action:      model.AuditRollback,
		OldValue:    map[string]interface{}{"from_version": fromNumber},
		NewValue:    map[string]interface{}{"to_version": target, "new_version": created.Number},
		Description: fmt.Sprintf("rollback da v%d para a v%d criou a v%d", fromNumber, target, created.Number),
		Actor:       actor.Name,
		ActorIP:     actor.IP,
	}
	if err := s.audits.Record(ctx, rollbackAudit); err != nil {
		s.logger.Warn("falha ao gravar auditoria de rollback", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.VersionEvent(string(model.AuditRollback))
	}
	s.logger.Info("rollback aplicado",
		zap.String("routeID", routeID),
		zap.Int("from", fromNumber),
		zap.Int("to", target),
		zap.Int("newVersion", created.Number),
		zap.String("actor", actor.Name))
	return created, nil
}

// AuditTrail retorna as entradas de auditoria de um alvo.
func (s *Service) AuditTrail(ctx context.Context, targetType, targetID string, limit int) ([]*model.AuditEntry, error) {
	entries, err := s.audits.GetByTarget(ctx, targetType, targetID, clampAuditLimit(limit))
	if err != nil {
		return nil, apierrors.InternalServer("falha ao consultar auditoria", err)
	}
	return entries, nil
}

// RecentAudit retorna as entradas mais recentes de todos os alvos.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	entries, err := s.audits.GetRecent(ctx, clampAuditLimit(limit))
	if err != nil {
		return nil, apierrors.InternalServer("falha ao consultar auditoria", err)
	}
	return entries, nil
}

// gateLogicBody aplica o portão de segurança no momento da gravação para
// lógica SQL. O mesmo portão roda de novo na execução; barrar aqui dá o
// erro na cara de quem está escrevendo a definição.
func (s *Service) gateLogicBody(logicType model.LogicType, body string) error {
	switch logicType {
	case model.LogicSQL:
		return s.analyzer.ValidateStatement(body)

	case model.LogicMultiSQL:
		var spec struct {
			Queries []struct {
				Name string `json:"name"`
				SQL  string `json:"sql"`
			} `json:"queries"`
		}
		if err := json.Unmarshal([]byte(body), &spec); err != nil {
			return apierrors.BadRequest("corpo MULTI_SQL não é JSON válido", err)
		}
		if len(spec.Queries) == 0 {
			return apierrors.BadRequest("MULTI_SQL sem consultas para executar", nil)
		}
		for _, q := range spec.Queries {
			if strings.TrimSpace(q.SQL) == "" {
				continue
			}
			if err := s.analyzer.ValidateStatement(q.SQL); err != nil {
				return err
			}
		}
		return nil

	case model.LogicPipeline:
		var spec struct {
			Steps []struct {
				Type string `json:"type"`
				Body string `json:"body"`
			} `json:"steps"`
		}
		if err := json.Unmarshal([]byte(body), &spec); err != nil {
			return apierrors.BadRequest("corpo PIPELINE não é JSON válido", err)
		}
		if len(spec.Steps) == 0 {
			return apierrors.BadRequest("pipeline sem passos para executar", nil)
		}
		for _, step := range spec.Steps {
			stepType := model.LogicType(step.Type)
			if step.Type == "" {
				stepType = model.LogicSQL
			}
			if stepType == model.LogicPipeline {
				return apierrors.BadRequest("um pipeline não pode conter outro pipeline", nil)
			}
			if stepType == model.LogicSQL || stepType == model.LogicMultiSQL {
				if err := s.gateLogicBody(stepType, step.Body); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return nil
}

// liveRoute busca uma rota que precisa existir e não estar removida.
func (s *Service) liveRoute(ctx context.Context, id string) (*model.Route, error) {
	route, err := s.routes.GetRouteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, routeNotFound(err)
		}
		return nil, apierrors.InternalServer("falha ao buscar rota", err)
	}
	if route.IsDeleted {
		return nil, routeNotFound(repository.ErrRouteNotFound)
	}
	return route, nil
}

// findByIdentity procura qualquer rota (inclusive removidas) com a
// identidade dada. Retorna nil sem erro quando não há nenhuma.
func (s *Service) findByIdentity(ctx context.Context, path, method string) (*model.Route, error) {
	routes, err := s.routes.GetRoutesWithFilters(ctx, repository.RouteFilter{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}

	method = strings.ToUpper(method)
	var deleted *model.Route
	for _, r := range routes {
		if r.NormalizedPath() != path || r.Method != method {
			continue
		}
		if !r.IsDeleted {
			return r, nil
		}
		if deleted == nil {
			deleted = r
		}
	}
	return deleted, nil
}

func (s *Service) duplicateError(route *model.Route) error {
	return apierrors.New(http.StatusConflict,
		fmt.Sprintf("já existe uma rota para %s [%s]", route.NormalizedPath(), strings.ToUpper(route.Method)),
		repository.ErrRouteExists)
}

// invalidate descarta o cache de listagens após qualquer mutação.
func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.ClearPrefix(ctx, routeCachePrefix); err != nil {
		s.logger.Warn("falha ao invalidar cache de rotas", zap.Error(err))
	}
}

// ClearCache descarta as listagens de rotas em cache. Exposto para o
// plano administrativo forçar uma releitura do banco.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.ClearPrefix(ctx, routeCachePrefix)
}

func routeNotFound(err error) error {
	return apierrors.New(http.StatusNotFound, "rota não encontrada", err)
}

func versionNotFound(number int, err error) error {
	return apierrors.New(http.StatusNotFound,
		fmt.Sprintf("versão %d não encontrada", number), err)
}

func listCacheKey(filter repository.RouteFilter) string {
	return fmt.Sprintf("%slist:%s:%s:%t:%t",
		routeCachePrefix,
		strings.ToUpper(filter.Method),
		filter.Tag,
		filter.IncludeDeleted,
		filter.OnlyActive)
}

func clampAuditLimit(limit int) int {
	if limit <= 0 {
		return defaultAuditLimit
	}
	if limit > maxAuditLimit {
		return maxAuditLimit
	}
	return limit
}

func paginate(routes []*model.Route, page, pageSize int) *RoutePage {
	total := len(routes)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &RoutePage{
		Items:    routes[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
}

// auditValue projeta um valor de domínio para o formato map das colunas
// de auditoria.
func auditValue(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
