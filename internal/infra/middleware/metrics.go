package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/infra/metrics"
)

// MetricsMiddleware coleta métricas de cada requisição
type MetricsMiddleware struct {
	metrics *metrics.EngineMetrics
	logger  *zap.Logger
}

// NewMetricsMiddleware cria um novo middleware de métricas
func NewMetricsMiddleware(engineMetrics *metrics.EngineMetrics, logger *zap.Logger) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: engineMetrics,
		logger:  logger,
	}
}

// MetricsHandler expõe o endpoint do Prometheus
type MetricsHandler struct {
	Metrics *metrics.EngineMetrics
	Logger  *zap.Logger
}

// NewMetricsHandler cria um novo handler de métricas
func NewMetricsHandler(engineMetrics *metrics.EngineMetrics, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		Metrics: engineMetrics,
		Logger:  logger,
	}
}

// GetMetrics retorna o objeto EngineMetrics para uso em outras partes da aplicação
func (h *MetricsHandler) GetMetrics() *metrics.EngineMetrics {
	return h.Metrics
}

// RegisterEndpoint registra o endpoint para expor métricas do Prometheus
func (h *MetricsHandler) RegisterEndpoint(router *gin.Engine, path string) {
	if path == "" {
		path = "/metrics"
	}
	router.GET(path, gin.WrapH(promhttp.Handler()))
	h.Logger.Info("endpoint de métricas Prometheus registrado", zap.String("path", path))
}

// Middleware registra métricas para cada requisição
func (m *MetricsMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		m.metrics.RequestStarted(path, method)

		var requestSize int
		if c.Request.ContentLength > 0 {
			requestSize = int(c.Request.ContentLength)
		}

		start := time.Now()

		// Envolve o ResponseWriter para capturar o tamanho da resposta
		blw := &bodyLogWriter{ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		m.metrics.RequestCompleted(path, method, status, duration, requestSize, blw.size)

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			m.metrics.RequestError(path, method, errorType)
		}
	}
}

// bodyLogWriter é um wrapper para gin.ResponseWriter que acumula o
// tamanho do corpo escrito
type bodyLogWriter struct {
	gin.ResponseWriter
	size int
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.size += size
	return size, err
}

func (w *bodyLogWriter) WriteString(s string) (int, error) {
	size, err := w.ResponseWriter.WriteString(s)
	w.size += size
	return size, err
}
