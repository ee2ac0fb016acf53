package app

import (
	"context"
	"fmt"
	net2 "net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/lfardo/api-engine-go/internal/adapter/connector"
	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/internal/adapter/http"
	"github.com/lfardo/api-engine-go/internal/app/auth"
	"github.com/lfardo/api-engine-go/internal/app/definition"
	"github.com/lfardo/api-engine-go/internal/app/nlquery"
	"github.com/lfardo/api-engine-go/internal/app/resolver"
	"github.com/lfardo/api-engine-go/internal/engine/executor"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/internal/infra/metrics"
	"github.com/lfardo/api-engine-go/internal/infra/middleware"
	"github.com/lfardo/api-engine-go/pkg/cache"
	"github.com/lfardo/api-engine-go/pkg/config"
	"github.com/lfardo/api-engine-go/pkg/ratelimit"
	"github.com/lfardo/api-engine-go/pkg/resilience"
	security2 "github.com/lfardo/api-engine-go/pkg/security"
)

// App agrega todos os componentes do motor com as dependências já
// injetadas. Os campos são exportados para que as ferramentas de linha
// de comando possam reutilizar partes da aplicação.
type App struct {
	Logger         *zap.Logger
	Config         *config.Config
	DB             *database.Database
	QueryDB        *database.Database
	Cache          cache.Cache
	Metrics        *metrics.EngineMetrics
	MetricsHandler *middleware.MetricsHandler
	Middleware     *middleware.Middleware
	Definitions    *definition.Service
	Executor       *executor.Executor
	DynamicHandler *http.DynamicHandler
	AdminHandler   *http.AdminHandler
	AuthHandler    *http.AuthHandler
	Health         *http.HealthChecker
}

// NewApp cria uma nova instância da aplicação com todas as dependências injetadas
func NewApp(logger *zap.Logger, cfg *config.Config) (*App, error) {
	ctx := context.Background()

	// Banco de definições: rotas, versões, auditoria e usuários
	dbConfig := database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        gormLogLevel(cfg.Database.LogLevel),
		SlowThreshold:   cfg.Database.SlowThreshold,
		MigrationDir:    cfg.Database.MigrationDir,
		SkipMigrations:  cfg.Database.SkipMigrations,
	}

	db, err := database.NewDatabase(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar ao banco de definições: %w", err)
	}

	// Banco de consulta: alvo das lógicas SQL das rotas dinâmicas. Sem
	// um DSN próprio, as consultas rodam no banco de definições.
	queryDB := db
	if cfg.Database.QueryDSN != "" {
		queryDriver := cfg.Database.QueryDriver
		if queryDriver == "" {
			queryDriver = cfg.Database.Driver
		}
		queryConfig := database.Config{
			Driver:          queryDriver,
			DSN:             cfg.Database.QueryDSN,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			LogLevel:        gormLogLevel(cfg.Database.LogLevel),
			SlowThreshold:   cfg.Database.SlowThreshold,
		}
		queryDB, err = database.NewQueryDatabase(ctx, queryConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("erro ao conectar ao banco de consulta: %w", err)
		}
	}

	// Inicializar métricas
	engineMetrics := metrics.NewEngineMetrics()
	metricsHandler := middleware.NewMetricsHandler(engineMetrics, logger)

	// Cache do catálogo de rotas. O serviço de definições exige um cache,
	// então a ausência de Redis cai para o cache em memória.
	cacheStore := newCacheStore(cfg, engineMetrics, logger)

	// Inicializar repositórios
	routeRepo := database.NewRouteRepository(db.DB(), logger)
	versionRepo := database.NewVersionRepository(db.DB(), logger)
	auditRepo := database.NewAuditRepository(db.DB(), logger)
	userRepo := database.NewUserRepository(db.DB(), logger)

	// Autenticação do plano administrativo. Desabilitada, o plano fica
	// trancado e as rotas dinâmicas com auth_required passam a falhar
	// com erro de configuração.
	var authService *auth.AuthService
	if cfg.Auth.Enabled {
		keyManager, err := security2.NewKeyManager(logger)
		if err != nil {
			return nil, fmt.Errorf("erro ao inicializar gerenciador de chaves JWT: %w", err)
		}
		authService = auth.NewAuthService(keyManager, userRepo, cfg.Auth.TokenExpiration, logger)
	} else {
		logger.Warn("Autenticação desabilitada: o plano administrativo ficará indisponível")
	}

	// Analisador de segurança SQL, compartilhado pelo executor, pelo
	// serviço de definições e pelas consultas avulsas
	analyzer := security.NewAnalyzer(cfg.Security, logger)

	// Circuit breakers das chamadas HTTP externas, um por host
	breakerCfg := resilience.CircuitBreakerConfig{
		MaxRequestsFail: 5,
		Interval:        time.Minute,
		Timeout:         30 * time.Second,
		MaxRequests:     3,
	}
	if !cfg.Features.CircuitBreaker {
		// O executor sempre passa pelo registro; com o recurso desligado
		// o limiar fica alto o bastante para o circuito nunca abrir
		breakerCfg.MaxRequestsFail = 1 << 30
	}
	breakers := resilience.NewRegistry(breakerCfg, logger, engineMetrics)

	// Conectores externos opcionais
	conns := executor.Connectors{
		SearchDial: func(host, user, password string) (executor.SearchQuerier, error) {
			return connector.NewAdHocOpenSearchConnector(host, user, password, logger)
		},
	}

	var bqConn *connector.BigQueryConnector
	if cfg.Connectors.BigQuery.ProjectID != "" {
		bqConn = connector.NewBigQueryConnector(cfg.Connectors.BigQuery, logger)
		conns.Analytics = bqConn
	}

	var osConn *connector.OpenSearchConnector
	if len(cfg.Connectors.OpenSearch.Addresses) > 0 {
		osConn, err = connector.NewOpenSearchConnector(cfg.Connectors.OpenSearch, logger)
		if err != nil {
			return nil, fmt.Errorf("erro ao criar conector OpenSearch: %w", err)
		}
		conns.Search = osConn
	}

	// Motor de execução e resolução de rotas
	exec := executor.NewExecutor(queryDB.DB(), analyzer, cfg.Engine, conns, breakers, logger)
	res := resolver.NewResolver(routeRepo, versionRepo, logger)

	// Serviço de definições (catálogo versionado de rotas)
	definitions, err := definition.NewService(routeRepo, versionRepo, auditRepo, analyzer, cacheStore, engineMetrics, logger)
	if err != nil {
		return nil, fmt.Errorf("erro ao inicializar serviço de definições: %w", err)
	}

	// Consultas em linguagem natural, apenas com um endpoint de LLM
	var nlService *nlquery.Service
	if cfg.NLQuery.Enabled && cfg.NLQuery.Endpoint != "" {
		generator := nlquery.NewHTTPGenerator(cfg.NLQuery, logger)
		nlService = nlquery.NewService(analyzer, generator, exec, cfg.NLQuery, logger)
	}

	// Rate limiter por rota, apenas com Redis disponível
	var limiter *ratelimit.RedisLimiter
	if cfg.Features.RateLimiter && cfg.Cache.Redis.Address != "" {
		redisClient, err := cache.NewRedisClientWithConfig(&redis.Options{
			Addr:         cfg.Cache.Redis.Address,
			Password:     cfg.Cache.Redis.Password,
			DB:           cfg.Cache.Redis.DB,
			PoolSize:     cfg.Cache.Redis.PoolSize,
			MinIdleConns: cfg.Cache.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			logger.Warn("Redis indisponível para rate limiting, limites por rota desativados", zap.Error(err))
		} else {
			limiter = ratelimit.NewRedisLimiter(redisClient, logger)
		}
	}

	// Inicializar handlers HTTP
	dynamicHandler := http.NewDynamicHandler(res, exec, authService, limiter, engineMetrics, cfg.Engine, logger)
	adminHandler := http.NewAdminHandler(definitions, nlService, analyzer, exec, logger)
	authHandler := http.NewAuthHandler(authService, logger)

	healthChecker := http.NewHealthChecker(definitions, db, cacheStore, logger)
	if queryDB != db {
		healthChecker.AddDependency(http.Dependency{Name: "query-database", Check: queryDB.Ping, Critical: true})
	}
	if bqConn != nil {
		healthChecker.AddDependency(http.Dependency{Name: "bigquery", Check: bqConn.Ping})
	}
	if osConn != nil {
		healthChecker.AddDependency(http.Dependency{Name: "opensearch", Check: osConn.Ping})
	}

	// Inicializar middlewares
	middlewares := middleware.NewMiddleware(logger, authService, engineMetrics, limiter, cfg.Tracing.ServiceName, cfg.Auth.AllowedOrigins)

	// Semear definições de rotas a partir do arquivo, quando existir
	if seedPath := definitionsFile(); seedPath != "" {
		loader := database.NewDefinitionLoader(routeRepo, versionRepo, logger)
		if err := loader.LoadFromFile(seedPath); err != nil {
			logger.Error("Falha ao carregar definições iniciais", zap.String("path", seedPath), zap.Error(err))
		}
	}

	return &App{
		Logger:         logger,
		Config:         cfg,
		DB:             db,
		QueryDB:        queryDB,
		Cache:          cacheStore,
		Metrics:        engineMetrics,
		MetricsHandler: metricsHandler,
		Middleware:     middlewares,
		Definitions:    definitions,
		Executor:       exec,
		DynamicHandler: dynamicHandler,
		AdminHandler:   adminHandler,
		AuthHandler:    authHandler,
		Health:         healthChecker,
	}, nil
}

// RegisterRoutes registra todas as rotas no router
func (a *App) RegisterRoutes(router *gin.Engine) {
	// Configurar middleware global
	router.Use(a.Middleware.Recovery())
	router.Use(a.Middleware.Logger())
	router.Use(a.Middleware.SecurityHeaders())
	router.Use(a.Middleware.CORS())
	router.Use(a.Middleware.IgnoreFavicon())
	if a.Config.Tracing.Enabled {
		router.Use(a.Middleware.Tracing())
	}
	if a.Config.Features.Monitoring {
		router.Use(a.Middleware.Metrics())
	}
	if a.Config.Features.RateLimiter {
		router.Use(a.Middleware.IPRateLimit())
	}

	// Rotas de autenticação
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", a.AuthHandler.Login)
	}

	// Expor endpoint de métricas para Prometheus
	if a.Config.Metrics.Enabled {
		a.MetricsHandler.RegisterEndpoint(router, a.Config.Metrics.PrometheusPath)
	}

	// Rotas públicas de saúde
	if a.Config.Features.HealthCheck {
		router.GET("/health", a.Health.DetailedHealth)
		router.GET("/health/liveness", a.Health.LivenessCheck)
		router.GET("/health/readiness", a.Health.ReadinessCheck)
	}

	// Plano administrativo: catálogo de rotas, versões, auditoria e
	// ferramentas de consulta
	if a.Config.Features.AdminAPI {
		admin := router.Group("/admin")
		admin.Use(a.Middleware.Authenticate)
		{
			admin.POST("/routes", a.AdminHandler.CreateRoute)
			admin.GET("/routes", a.AdminHandler.ListRoutes)
			admin.GET("/routes/:id", a.AdminHandler.GetRoute)
			admin.PUT("/routes/:id", a.AdminHandler.UpdateRoute)
			admin.POST("/routes/:id/activate", a.AdminHandler.ActivateRoute)
			admin.POST("/routes/:id/deactivate", a.AdminHandler.DeactivateRoute)
			admin.POST("/routes/:id/restore", a.AdminHandler.RestoreRoute)
			admin.DELETE("/routes/:id", a.AdminHandler.DeleteRoute)

			admin.POST("/routes/:id/versions", a.AdminHandler.CreateVersion)
			admin.GET("/routes/:id/versions", a.AdminHandler.ListVersions)
			admin.GET("/routes/:id/versions/:number", a.AdminHandler.GetVersion)
			admin.POST("/routes/:id/versions/:number/activate", a.AdminHandler.ActivateVersion)
			admin.POST("/routes/:id/versions/:number/rollback", a.AdminHandler.RollbackVersion)

			admin.GET("/routes/:id/audit", a.AdminHandler.RouteAudit)
			admin.GET("/audit", a.AdminHandler.RecentAudit)

			admin.GET("/export", a.AdminHandler.ExportRoutes)
			admin.POST("/import", a.AdminHandler.ImportRoutes)
			admin.POST("/cache/clear", a.AdminHandler.ClearCache)

			admin.POST("/query", a.AdminHandler.NaturalQuery)
			admin.POST("/query/test", a.AdminHandler.TestQuery)

			admin.POST("/users", a.Middleware.AuthenticateAdmin, a.AuthHandler.RegisterUser)
		}
	}

	// Plano de execução: todas as rotas dinâmicas entram por aqui
	router.Any("/api/*path", a.DynamicHandler.Serve)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(net2.StatusNotFound, gin.H{
			"type":    "ROUTE_NOT_FOUND",
			"message": "recurso não encontrado",
			"path":    c.Request.URL.Path,
		})
	})
}

// Close encerra as conexões de banco da aplicação.
func (a *App) Close() error {
	if a.QueryDB != nil && a.QueryDB != a.DB {
		if err := a.QueryDB.Close(); err != nil {
			a.Logger.Warn("Erro ao fechar banco de consulta", zap.Error(err))
		}
	}
	return a.DB.Close()
}

// newCacheStore escolhe a implementação de cache conforme a configuração.
// O serviço de definições sempre recebe um cache; desabilitado, ele é
// um no-op e toda leitura vira miss.
func newCacheStore(cfg *config.Config, engineMetrics *metrics.EngineMetrics, logger *zap.Logger) cache.Cache {
	if !cfg.Features.Caching || !cfg.Cache.Enabled {
		logger.Info("Cache do catálogo desabilitado")
		return &cache.NoOpCache{}
	}

	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.Redis.Address, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, logger)
		if err == nil {
			return redisCache
		}
		logger.Warn("Redis indisponível, usando cache em memória", zap.Error(err))
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return cache.NewMemoryCache(ttl, 2*ttl, engineMetrics, logger)
}

// definitionsFile resolve o caminho do arquivo de seed de rotas. A
// variável de ambiente tem prioridade; sem ela, o arquivo padrão só é
// usado se existir.
func definitionsFile() string {
	if path := os.Getenv("AE_DEFINITIONS_FILE"); path != "" {
		return path
	}
	defaultPath := "./config/definitions.yaml"
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}
	return ""
}

// gormLogLevel converte o nível textual da configuração para o nível do GORM.
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
