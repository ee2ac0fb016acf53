package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/app/auth"
	"github.com/lfardo/api-engine-go/internal/infra/metrics"
	"github.com/lfardo/api-engine-go/pkg/ratelimit"
)

// Middleware agrega os middlewares do plano administrativo e do plano
// dinâmico. As dependências chegam prontas do app: nenhum middleware
// carrega configuração por conta própria.
type Middleware struct {
	logger              *zap.Logger
	authMiddleware      *AuthMiddleware
	recoveryMiddleware  *RecoveryMiddleware
	securityMiddleware  *SecurityMiddleware
	tracingMiddleware   *TracingMiddleware
	metricsMiddleware   *MetricsMiddleware
	rateLimitMiddleware *RateLimitMiddleware
}

// NewMiddleware cria o conjunto de middlewares. O limiter pode ser nil
// quando o Redis não está configurado; nesse caso o rate limit global
// vira um no-op.
func NewMiddleware(logger *zap.Logger, authService *auth.AuthService, engineMetrics *metrics.EngineMetrics, limiter *ratelimit.RedisLimiter, serviceName string, allowedOrigins []string) *Middleware {
	m := &Middleware{
		logger:             logger,
		authMiddleware:     NewAuthMiddleware(authService, logger),
		recoveryMiddleware: NewRecoveryMiddleware(logger),
		securityMiddleware: NewSecurityMiddleware(allowedOrigins, logger),
		tracingMiddleware:  NewTracingMiddleware(logger, serviceName),
	}

	if engineMetrics != nil {
		m.metricsMiddleware = NewMetricsMiddleware(engineMetrics, logger)
	}
	if limiter != nil {
		m.rateLimitMiddleware = NewRateLimitMiddleware(limiter, engineMetrics, logger)
	}
	return m
}

// Metrics retorna o middleware de métricas
func (m *Middleware) Metrics() gin.HandlerFunc {
	if m.metricsMiddleware != nil {
		return m.metricsMiddleware.Middleware()
	}
	return func(c *gin.Context) {
		c.Next()
	}
}

// IPRateLimit retorna o rate limit global por IP
func (m *Middleware) IPRateLimit() gin.HandlerFunc {
	if m.rateLimitMiddleware != nil {
		return m.rateLimitMiddleware.IPRateLimit()
	}
	return func(c *gin.Context) {
		c.Next()
	}
}

// Authenticate middleware para autenticação de usuários
func (m *Middleware) Authenticate(c *gin.Context) {
	m.authMiddleware.Authenticate(c)
}

// AuthenticateAdmin middleware para autenticação de administradores
func (m *Middleware) AuthenticateAdmin(c *gin.Context) {
	m.authMiddleware.AuthenticateAdmin(c)
}

// Recovery middleware para recuperação de pânicos
func (m *Middleware) Recovery() gin.HandlerFunc {
	return m.recoveryMiddleware.Recovery()
}

// IgnoreFavicon ignora requisições para /favicon.ico antes que caiam no
// catch-all de rotas dinâmicas
func (m *Middleware) IgnoreFavicon() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/favicon.ico" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Logger middleware para logging de requisições
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		m.logger.Info("request completed",
			zap.String("path", path),
			zap.String("method", method),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", clientIP),
		)
	}
}

// SecurityHeaders middleware para adicionar cabeçalhos de segurança
func (m *Middleware) SecurityHeaders() gin.HandlerFunc {
	return m.securityMiddleware.Headers()
}

// CORS middleware para o plano administrativo
func (m *Middleware) CORS() gin.HandlerFunc {
	return m.securityMiddleware.CORS()
}

// Tracing retorna o middleware de tracing
func (m *Middleware) Tracing() gin.HandlerFunc {
	return m.tracingMiddleware.Middleware()
}
