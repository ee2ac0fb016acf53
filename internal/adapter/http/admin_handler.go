package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/app/definition"
	"github.com/lfardo/api-engine-go/internal/app/nlquery"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// AdminHandler implementa o plano administrativo: rotas, versões,
// auditoria, exportação e as ferramentas de consulta.
type AdminHandler struct {
	definitions *definition.Service
	nlQueries   *nlquery.Service
	analyzer    *security.Analyzer
	runner      nlquery.Runner
	logger      *zap.Logger
}

// NewAdminHandler cria o handler administrativo. nlQueries pode ser nil
// quando o recurso está desabilitado.
func NewAdminHandler(
	definitions *definition.Service,
	nlQueries *nlquery.Service,
	analyzer *security.Analyzer,
	runner nlquery.Runner,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		definitions: definitions,
		nlQueries:   nlQueries,
		analyzer:    analyzer,
		runner:      runner,
		logger:      logger,
	}
}

// respondError escreve o envelope de erro padrão. Erros não tipados
// viram EXECUTION_ERROR genérico sem vazar a mensagem interna.
func respondError(c *gin.Context, err error) {
	apiErr := apierrors.AsAPIError(err)
	c.JSON(apiErr.Code, apiErr)
}

// actorFrom monta o ator da auditoria a partir do usuário autenticado.
func actorFrom(c *gin.Context) definition.Actor {
	actor := definition.Actor{Name: "system", IP: c.ClientIP()}
	if value, ok := c.Get("user"); ok {
		if user, ok := value.(*model.User); ok {
			actor.Name = user.Username
		}
	}
	return actor
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// CreateRoute registra uma nova rota dinâmica
func (h *AdminHandler) CreateRoute(c *gin.Context) {
	var route model.Route
	if err := c.ShouldBindJSON(&route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	created, err := h.definitions.CreateRoute(c.Request.Context(), &route, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListRoutes lista rotas com filtros e paginação
func (h *AdminHandler) ListRoutes(c *gin.Context) {
	filter := repository.RouteFilter{
		Method:         c.Query("method"),
		Tag:            c.Query("tag"),
		IncludeDeleted: c.Query("include_deleted") == "true",
		OnlyActive:     c.Query("only_active") == "true",
	}

	page, err := h.definitions.ListRoutes(c.Request.Context(), filter,
		intQuery(c, "page", 1), intQuery(c, "page_size", 20))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetRoute devolve uma rota pelo ID, inclusive removidas
func (h *AdminHandler) GetRoute(c *gin.Context) {
	route, err := h.definitions.GetRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, route)
}

// UpdateRoute aplica uma atualização parcial dos metadados mutáveis
func (h *AdminHandler) UpdateRoute(c *gin.Context) {
	var patch definition.RoutePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	route, err := h.definitions.UpdateRoute(c.Request.Context(), c.Param("id"), patch, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, route)
}

// ActivateRoute liga uma rota
func (h *AdminHandler) ActivateRoute(c *gin.Context) {
	h.setRouteStatus(c, true)
}

// DeactivateRoute desliga uma rota sem remover nada
func (h *AdminHandler) DeactivateRoute(c *gin.Context) {
	h.setRouteStatus(c, false)
}

func (h *AdminHandler) setRouteStatus(c *gin.Context, active bool) {
	route, err := h.definitions.SetRouteStatus(c.Request.Context(), c.Param("id"), active, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, route)
}

// DeleteRoute remove logicamente uma rota. A linha sobrevive para
// inspeção e a identidade fica livre para reuso.
func (h *AdminHandler) DeleteRoute(c *gin.Context) {
	if err := h.definitions.DeleteRoute(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rota removida"})
}

// RestoreRoute desfaz uma remoção lógica
func (h *AdminHandler) RestoreRoute(c *gin.Context) {
	route, err := h.definitions.RestoreRoute(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, route)
}

// CreateVersion cria uma nova versão para a rota
func (h *AdminHandler) CreateVersion(c *gin.Context) {
	var version model.Version
	if err := c.ShouldBindJSON(&version); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}
	version.RouteID = c.Param("id")

	created, err := h.definitions.CreateVersion(c.Request.Context(), &version, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListVersions lista as versões da rota, da mais recente para a mais antiga
func (h *AdminHandler) ListVersions(c *gin.Context) {
	versions, err := h.definitions.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, versions)
}

// GetVersion devolve uma versão específica da rota
func (h *AdminHandler) GetVersion(c *gin.Context) {
	number, err := versionNumber(c)
	if err != nil {
		respondError(c, err)
		return
	}

	version, err := h.definitions.GetVersion(c.Request.Context(), c.Param("id"), number)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, version)
}

// ActivateVersion marca a versão como corrente
func (h *AdminHandler) ActivateVersion(c *gin.Context) {
	number, err := versionNumber(c)
	if err != nil {
		respondError(c, err)
		return
	}

	version, err := h.definitions.ActivateVersion(c.Request.Context(), c.Param("id"), number, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, version)
}

// RollbackVersion copia uma versão antiga como nova versão corrente.
// Nada é sobrescrito: o histórico continua íntegro.
func (h *AdminHandler) RollbackVersion(c *gin.Context) {
	number, err := versionNumber(c)
	if err != nil {
		respondError(c, err)
		return
	}

	version, err := h.definitions.RollbackVersion(c.Request.Context(), c.Param("id"), number, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, version)
}

func versionNumber(c *gin.Context) (int, error) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		return 0, apierrors.BadRequest("número de versão inválido", err)
	}
	return number, nil
}

// RouteAudit devolve a trilha de auditoria de uma rota
func (h *AdminHandler) RouteAudit(c *gin.Context) {
	entries, err := h.definitions.AuditTrail(c.Request.Context(),
		model.AuditTargetRoute, c.Param("id"), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// RecentAudit devolve as entradas mais recentes de toda a trilha
func (h *AdminHandler) RecentAudit(c *gin.Context) {
	entries, err := h.definitions.RecentAudit(c.Request.Context(), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ExportRoutes serializa todas as rotas vivas com suas versões
func (h *AdminHandler) ExportRoutes(c *gin.Context) {
	doc, err := h.definitions.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	format := c.DefaultQuery("format", "json")
	data, contentType, err := definition.MarshalExport(doc, format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, contentType, data)
}

// ImportRoutes recria rotas e versões a partir de um documento exportado.
// A importação nunca escreve linhas diretamente: tudo passa pelo ciclo
// normal de criação, com validação e auditoria.
func (h *AdminHandler) ImportRoutes(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "falha ao ler o corpo da requisição"})
		return
	}

	format := c.Query("format")
	if format == "" {
		contentType := c.GetHeader("Content-Type")
		if strings.Contains(contentType, "yaml") || strings.Contains(contentType, "yml") {
			format = "yaml"
		} else {
			format = "json"
		}
	}

	doc, err := definition.UnmarshalImport(body, format)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.definitions.Import(c.Request.Context(), doc, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ClearCache descarta as listagens em cache
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if err := h.definitions.ClearCache(c.Request.Context()); err != nil {
		h.logger.Error("falha ao limpar cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "falha ao limpar cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cache limpo"})
}

type naturalQueryRequest struct {
	Question string `json:"question" binding:"required"`
	MaxRows  int    `json:"max_rows"`
}

// NaturalQuery responde uma pergunta em linguagem natural gerando e
// executando SQL sob o mesmo analisador das rotas dinâmicas
func (h *AdminHandler) NaturalQuery(c *gin.Context) {
	if h.nlQueries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "consultas em linguagem natural desabilitadas"})
		return
	}

	var req naturalQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	result, err := h.nlQueries.Query(c.Request.Context(), req.Question, req.MaxRows)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type testQueryRequest struct {
	Query   string `json:"query" binding:"required"`
	MaxRows int    `json:"max_rows"`
}

// TestQuery executa uma consulta avulsa sob o analisador de segurança.
// Consultas reprovadas devolvem o relatório com allowed=false; só a
// execução em si pode produzir erro.
func (h *AdminHandler) TestQuery(c *gin.Context) {
	var req testQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	report := h.analyzer.Analyze(req.Query, "")
	if !report.ExecutionAllowed {
		c.JSON(http.StatusOK, gin.H{
			"allowed":  false,
			"analysis": report,
		})
		return
	}

	query := report.SanitizedQuery
	if req.MaxRows > 0 {
		query = security.ClampLimit(query, req.MaxRows)
	}

	start := time.Now()
	rows, columns, err := h.runner.QueryAdHoc(c.Request.Context(), query, req.MaxRows)
	elapsed := time.Since(start)
	if err != nil {
		respondError(c, apierrors.NewKind(apierrors.KindExecutionError,
			"erro na execução da consulta de teste", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allowed":      true,
		"analysis":     report,
		"executed_sql": query,
		"columns":      columns,
		"rows":         rows,
		"count":        len(rows),
		"elapsed_ms":   elapsed.Milliseconds(),
	})
}
