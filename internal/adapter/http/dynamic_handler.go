package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/app/auth"
	"github.com/lfardo/api-engine-go/internal/app/resolver"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/engine/executor"
	"github.com/lfardo/api-engine-go/internal/engine/formatter"
	"github.com/lfardo/api-engine-go/internal/engine/validator"
	"github.com/lfardo/api-engine-go/internal/infra/metrics"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/lfardo/api-engine-go/pkg/ratelimit"
)

// versionParam é o parâmetro de query que fixa uma versão específica da
// rota. Ele nunca chega à validação nem à lógica: é consumido aqui.
const versionParam = "_version"

// DynamicHandler atende o catch-all /api/*path. Cada requisição percorre
// o ciclo completo: resolução → origem → autenticação da rota → rate
// limit da rota → versão → extração e validação de parâmetros →
// execução → formatação.
type DynamicHandler struct {
	resolver *resolver.Resolver
	executor *executor.Executor
	auth     *auth.AuthService
	limiter  *ratelimit.RedisLimiter
	metrics  *metrics.EngineMetrics
	cfg      config.EngineConfig
	logger   *zap.Logger
}

// NewDynamicHandler cria o handler do plano de execução. authService e
// limiter podem ser nil quando os recursos correspondentes não estão
// configurados.
func NewDynamicHandler(
	res *resolver.Resolver,
	exec *executor.Executor,
	authService *auth.AuthService,
	limiter *ratelimit.RedisLimiter,
	engineMetrics *metrics.EngineMetrics,
	cfg config.EngineConfig,
	logger *zap.Logger,
) *DynamicHandler {
	return &DynamicHandler{
		resolver: res,
		executor: exec,
		auth:     authService,
		limiter:  limiter,
		metrics:  engineMetrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Serve processa uma requisição dinâmica de ponta a ponta.
func (h *DynamicHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	path := strings.TrimPrefix(c.Param("path"), "/")
	method := c.Request.Method

	route, err := h.resolver.ResolveRoute(ctx, path, method)
	if err != nil {
		h.fail(c, path, err)
		return
	}

	if origin := c.GetHeader("Origin"); origin != "" {
		if !route.IsOriginAllowed(origin) {
			h.fail(c, path, apierrors.Forbidden("origem não permitida para esta rota", nil))
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
	}

	if route.AuthRequired {
		if err := h.authenticate(c); err != nil {
			h.fail(c, path, err)
			return
		}
	}

	if !h.allowRate(c, route) {
		return
	}

	explicit, err := h.versionPin(c)
	if err != nil {
		h.fail(c, path, err)
		return
	}

	version, err := h.resolver.ResolveVersion(ctx, route.ID, explicit)
	if err != nil {
		h.fail(c, path, err)
		return
	}

	params := h.extractParams(c)
	delete(params, versionParam)

	validated, err := validator.Validate(params, version.RequestSchema)
	if err != nil {
		h.fail(c, path, err)
		return
	}

	start := time.Now()
	result, err := h.executor.Execute(ctx, version.LogicType, version.LogicBody, validated, version.LogicConfig)
	duration := time.Since(start)
	if err != nil {
		if h.metrics != nil {
			h.metrics.LogicExecuted(string(version.LogicType), "error", duration)
		}
		h.fail(c, path, err)
		return
	}
	if h.metrics != nil {
		h.metrics.LogicExecuted(string(version.LogicType), "success", duration)
	}

	body, status := formatter.Format(result.Value, result.Count, version.ResponseTemplate, version.StatusCodes)
	c.JSON(status, body)

	h.logger.Info("rota dinâmica executada",
		zap.String("path", path),
		zap.String("method", method),
		zap.Int("version", version.Number),
		zap.String("logicType", string(version.LogicType)),
		zap.Int("status", status),
		zap.Duration("duration", duration))
}

// authenticate valida o token exigido pela rota. A exigência é da rota,
// não do plano: rotas sem auth_required nunca chegam aqui.
func (h *DynamicHandler) authenticate(c *gin.Context) error {
	if h.auth == nil {
		return apierrors.NewKind(apierrors.KindConfigurationError,
			"rota exige autenticação, mas o serviço de autenticação não está configurado", nil)
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return apierrors.Unauthorized("", nil)
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return apierrors.Unauthorized("formato inválido do token", nil)
	}

	user, err := h.auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return apierrors.Unauthorized("token inválido ou expirado", err)
	}
	c.Set("user", user)
	return nil
}

// allowRate aplica o limite por minuto da rota, por cliente. Falha do
// limitador nunca bloqueia a requisição.
func (h *DynamicHandler) allowRate(c *gin.Context, route *model.Route) bool {
	if route.RateLimit <= 0 || h.limiter == nil {
		return true
	}

	allowed, remaining, resetAfter, err := h.limiter.AllowRoute(
		c.Request.Context(), route.ID, c.ClientIP(), route.RateLimit)
	if err != nil {
		h.logger.Warn("limitador indisponível, requisição permitida",
			zap.String("path", route.Path), zap.Error(err))
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(route.RateLimit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetAfter).Unix(), 10))

	if !allowed {
		if h.metrics != nil {
			h.metrics.RateLimitExceeded(route.Path, route.Method, "route_limit")
		}
		c.Header("Retry-After", strconv.Itoa(int(resetAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"message":     "limite de requisições da rota excedido",
			"retry_after": int(resetAfter.Seconds()),
		})
		return false
	}
	return true
}

// versionPin lê o pin de versão da query string.
func (h *DynamicHandler) versionPin(c *gin.Context) (*int, error) {
	raw := c.Query(versionParam)
	if raw == "" {
		return nil, nil
	}
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		return nil, apierrors.NewKind(apierrors.KindValidationError,
			"deve ser um inteiro positivo", err).WithField(versionParam)
	}
	return &number, nil
}

// extractParams monta o conjunto bruto de parâmetros. GET e DELETE leem
// a query string; os demais métodos leem o corpo JSON. Um corpo que não
// é um objeto vira {"_body": valor}; um corpo malformado ou vazio vira
// um conjunto vazio, nunca um erro.
func (h *DynamicHandler) extractParams(c *gin.Context) map[string]interface{} {
	params := make(map[string]interface{})

	switch c.Request.Method {
	case http.MethodGet, http.MethodDelete:
		for key, values := range c.Request.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	default:
		reader := http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes)
		body, err := io.ReadAll(reader)
		if err != nil {
			h.logger.Warn("corpo da requisição descartado",
				zap.String("path", c.Request.URL.Path), zap.Error(err))
			return params
		}
		if len(body) == 0 {
			return params
		}

		var decoded interface{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return params
		}
		if obj, ok := decoded.(map[string]interface{}); ok {
			return obj
		}
		params["_body"] = decoded
	}
	return params
}

// fail converte o erro para o envelope padrão e registra as métricas do
// desfecho. A mensagem crua do erro interno nunca chega à resposta.
func (h *DynamicHandler) fail(c *gin.Context, path string, err error) {
	apiErr := apierrors.AsAPIError(err)

	if h.metrics != nil {
		errorType := strings.ToLower(string(apiErr.Kind))
		if errorType == "" {
			errorType = "client_error"
			if apiErr.Code >= 500 {
				errorType = "server_error"
			}
		}
		h.metrics.RequestError(path, c.Request.Method, errorType)

		switch apiErr.Kind {
		case apierrors.KindDangerousSQL, apierrors.KindMultipleStatements:
			h.metrics.SecurityRejection(string(apiErr.Kind))
		}
	}

	if apiErr.Code >= 500 {
		h.logger.Error("falha na requisição dinâmica",
			zap.String("path", path),
			zap.String("method", c.Request.Method),
			zap.String("kind", string(apiErr.Kind)),
			zap.Error(err))
	} else {
		h.logger.Warn("requisição dinâmica rejeitada",
			zap.String("path", path),
			zap.String("method", c.Request.Method),
			zap.String("kind", string(apiErr.Kind)),
			zap.String("reason", apiErr.Message))
	}

	c.JSON(apiErr.Code, apiErr)
}
