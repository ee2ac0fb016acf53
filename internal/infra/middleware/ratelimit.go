package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/infra/metrics"
	"github.com/lfardo/api-engine-go/pkg/ratelimit"
)

// RateLimitMiddleware aplica os limites globais por IP e por usuário.
// O limite por rota dinâmica não mora aqui: ele depende da rota
// resolvida e é aplicado pelo handler dinâmico via RedisLimiter.AllowRoute.
type RateLimitMiddleware struct {
	limiter *ratelimit.RedisLimiter
	logger  *zap.Logger
	metrics *metrics.EngineMetrics
}

// NewRateLimitMiddleware cria um novo middleware de rate limiting
func NewRateLimitMiddleware(limiter *ratelimit.RedisLimiter, engineMetrics *metrics.EngineMetrics, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
		metrics: engineMetrics,
	}
}

// IPRateLimit limita requisições por IP
func (m *RateLimitMiddleware) IPRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		config := ratelimit.LimitConfig{
			Key:         clientIP,
			Limit:       100,
			Period:      time.Minute,
			BurstFactor: 1.5,
		}

		blockKey := fmt.Sprintf("ratelimit:blocked:%s", clientIP)
		blocked, _ := m.limiter.RedisClient.Get(c, blockKey).Bool()
		if blocked {
			c.Header("Retry-After", "600")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "IP temporariamente bloqueado devido a excesso de requisições",
				"retry_after": 600,
			})
			return
		}

		allowed, limit, remaining, resetAfter, err := m.limiter.Allow(c.Request.Context(), config)
		if err != nil {
			// Falha no limitador nunca derruba a requisição
			m.logger.Error("erro ao verificar rate limit", zap.Error(err))
			c.Next()
			return
		}

		if !allowed && remaining < -100 {
			if m.metrics != nil {
				path := c.FullPath()
				if path == "" {
					path = c.Request.URL.Path
				}
				m.metrics.RateLimitExceeded(path, c.Request.Method, "ip_limit")
			}
			m.logger.Warn("possível abuso detectado, alto volume de requisições",
				zap.String("ip", clientIP),
				zap.Int("requests", limit-remaining))

			// Bloqueia o IP por um período mais longo
			m.limiter.RedisClient.Set(c, blockKey, true, 10*time.Minute)

			c.Header("Retry-After", "600")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "limite de requisições excedido significativamente",
				"retry_after": 600,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetAfter).Unix(), 10))

		if !allowed {
			if m.metrics != nil {
				path := c.FullPath()
				if path == "" {
					path = c.Request.URL.Path
				}
				m.metrics.RateLimitExceeded(path, c.Request.Method, "ip_limit")
			}
			c.Header("Retry-After", strconv.Itoa(int(resetAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "taxa de requisições excedida",
				"retry_after": int(resetAfter.Seconds()),
			})
			return
		}

		c.Next()
	}
}

// UserRateLimit limita requisições por usuário autenticado do plano
// administrativo
func (m *RateLimitMiddleware) UserRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.Next()
			return
		}

		user, ok := userVal.(*model.User)
		if !ok {
			c.Next()
			return
		}

		config := ratelimit.LimitConfig{
			Key:         "user:" + user.ID,
			Limit:       1000,
			Period:      time.Minute,
			BurstFactor: 1.5,
		}

		allowed, limit, remaining, resetAfter, err := m.limiter.Allow(c.Request.Context(), config)
		if err != nil {
			m.logger.Error("erro ao verificar rate limit do usuário", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-User-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-User-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-User-Reset", strconv.FormatInt(time.Now().Add(resetAfter).Unix(), 10))

		if !allowed {
			if m.metrics != nil {
				m.metrics.RateLimitExceeded(c.Request.URL.Path, c.Request.Method, "user_limit")
			}
			c.Header("Retry-After", strconv.Itoa(int(resetAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "taxa de requisições do usuário excedida",
				"retry_after": int(resetAfter.Seconds()),
			})
			return
		}

		c.Next()
	}
}
