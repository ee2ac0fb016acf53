package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics gerencia as métricas do motor de execução
type EngineMetrics struct {
	requestCounter     *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestSize        *prometheus.SummaryVec
	responseSize       *prometheus.SummaryVec
	activeRequests     *prometheus.GaugeVec
	errorsTotal        *prometheus.CounterVec
	logicExecutions    *prometheus.CounterVec
	logicDuration      *prometheus.HistogramVec
	securityRejections *prometheus.CounterVec
	versionEvents      *prometheus.CounterVec
	circuitBreakerOpen *prometheus.GaugeVec
	rateLimited        *prometheus.CounterVec
	cacheHitRatio      *prometheus.GaugeVec
}

// NewEngineMetrics cria e registra métricas do prometheus
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		requestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_requests_total",
				Help: "Total number of HTTP requests by path, method, and status code",
			},
			[]string{"path", "method", "status"},
		),

		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_engine_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		requestSize: promauto.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "api_engine_request_size_bytes",
				Help:       "HTTP request size in bytes",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"path", "method"},
		),

		responseSize: promauto.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "api_engine_response_size_bytes",
				Help:       "HTTP response size in bytes",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"path", "method"},
		),

		activeRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "api_engine_active_requests",
				Help: "Number of in-flight requests being processed",
			},
			[]string{"path", "method"},
		),

		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"path", "method", "error_type"},
		),

		logicExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_logic_executions_total",
				Help: "Total number of dynamic logic executions by type and outcome",
			},
			[]string{"logic_type", "outcome"},
		),

		logicDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_engine_logic_duration_seconds",
				Help:    "Dynamic logic execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"logic_type"},
		),

		securityRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_security_rejections_total",
				Help: "Total number of queries rejected by the SQL analyzer",
			},
			[]string{"category"},
		),

		versionEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_version_events_total",
				Help: "Total number of version lifecycle events by action",
			},
			[]string{"action"},
		),

		circuitBreakerOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "api_engine_circuit_breaker_open",
				Help: "Indicates if a circuit breaker is open (1) or closed (0)",
			},
			[]string{"service"},
		),

		rateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_engine_rate_limited_requests_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"path", "method", "limit_type"},
		),

		cacheHitRatio: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "api_engine_cache_hit_ratio",
				Help: "Cache hit ratio (0.0 to 1.0)",
			},
			[]string{"cache_type"},
		),
	}
}

// RequestStarted registra o início de uma requisição
func (m *EngineMetrics) RequestStarted(path, method string) {
	m.activeRequests.WithLabelValues(path, method).Inc()
}

// RequestCompleted registra a conclusão de uma requisição
func (m *EngineMetrics) RequestCompleted(path, method, status string, duration time.Duration, requestSize, responseSize int) {
	m.requestCounter.WithLabelValues(path, method, status).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
	m.requestSize.WithLabelValues(path, method).Observe(float64(requestSize))
	m.responseSize.WithLabelValues(path, method).Observe(float64(responseSize))
	m.activeRequests.WithLabelValues(path, method).Dec()
}

// RequestError registra um erro de requisição
func (m *EngineMetrics) RequestError(path, method, errorType string) {
	m.errorsTotal.WithLabelValues(path, method, errorType).Inc()
}

// LogicExecuted registra uma execução de lógica dinâmica
func (m *EngineMetrics) LogicExecuted(logicType, outcome string, duration time.Duration) {
	m.logicExecutions.WithLabelValues(logicType, outcome).Inc()
	m.logicDuration.WithLabelValues(logicType).Observe(duration.Seconds())
}

// SecurityRejection registra uma consulta barrada pelo analisador
func (m *EngineMetrics) SecurityRejection(category string) {
	m.securityRejections.WithLabelValues(category).Inc()
}

// VersionEvent registra um evento do ciclo de vida de versões
func (m *EngineMetrics) VersionEvent(action string) {
	m.versionEvents.WithLabelValues(action).Inc()
}

// CircuitBreakerStateChanged registra mudança no estado de um circuit breaker
func (m *EngineMetrics) CircuitBreakerStateChanged(service string, isOpen bool) {
	value := 0.0
	if isOpen {
		value = 1.0
	}
	m.circuitBreakerOpen.WithLabelValues(service).Set(value)
}

// RateLimitExceeded registra quando um limite de taxa é excedido
func (m *EngineMetrics) RateLimitExceeded(path, method, limitType string) {
	m.rateLimited.WithLabelValues(path, method, limitType).Inc()
}

// UpdateCacheHitRatio atualiza a taxa de acertos do cache
func (m *EngineMetrics) UpdateCacheHitRatio(cacheType string, hitRatio float64) {
	m.cacheHitRatio.WithLabelValues(cacheType).Set(hitRatio)
}
