package http

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/app/definition"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
)

// HealthChecker implementa os endpoints de health check
type HealthChecker struct {
	definitions  *definition.Service
	db           DatabaseChecker
	cache        CacheChecker
	logger       *zap.Logger
	dependencies []Dependency
}

// DatabaseChecker define a interface para verificar o banco de dados
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker define a interface para verificar o cache
type CacheChecker interface {
	Ping(ctx context.Context) error
}

// Dependency representa um componente do qual o sistema depende
type Dependency struct {
	Name     string
	Check    func(context.Context) error
	Critical bool // falha de um componente crítico derruba o readiness
}

// NewHealthChecker cria um novo health checker
func NewHealthChecker(definitions *definition.Service, db DatabaseChecker, cacheStore CacheChecker, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		definitions: definitions,
		db:          db,
		cache:       cacheStore,
		logger:      logger,
	}

	hc.dependencies = []Dependency{
		{
			Name:     "database",
			Check:    db.Ping,
			Critical: true,
		},
		{
			Name:     "cache",
			Check:    cacheStore.Ping,
			Critical: false,
		},
	}

	return hc
}

// AddDependency registra um componente extra a verificar, como os
// conectores de BigQuery e OpenSearch quando configurados.
func (h *HealthChecker) AddDependency(dep Dependency) {
	h.dependencies = append(h.dependencies, dep)
}

// LivenessCheck verifica se o aplicativo está vivo
func (h *HealthChecker) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessCheck verifica se o aplicativo está pronto para receber tráfego
func (h *HealthChecker) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		status = http.StatusOK
		checks = make(map[string]interface{})
	)

	for _, dep := range h.dependencies {
		wg.Add(1)
		go func(d Dependency) {
			defer wg.Done()

			start := time.Now()
			err := d.Check(ctx)
			duration := time.Since(start)

			depStatus := "UP"
			if err != nil {
				depStatus = "DOWN"
				h.logger.Error("health check falhou",
					zap.String("dependency", d.Name),
					zap.Error(err))
			}

			mu.Lock()
			if err != nil && d.Critical {
				status = http.StatusServiceUnavailable
			}
			checks[d.Name] = gin.H{
				"status":   depStatus,
				"time":     duration.String(),
				"critical": d.Critical,
			}
			mu.Unlock()
		}(dep)
	}

	// O catálogo de rotas é a dependência que define este serviço
	wg.Add(1)
	go func() {
		defer wg.Done()

		start := time.Now()
		page, err := h.definitions.ListRoutes(ctx, repository.RouteFilter{}, 1, 1)
		duration := time.Since(start)

		details := gin.H{
			"status":   "UP",
			"time":     duration.String(),
			"critical": true,
		}

		mu.Lock()
		if err != nil {
			details["status"] = "DOWN"
			status = http.StatusServiceUnavailable
			h.logger.Error("health check do catálogo de rotas falhou", zap.Error(err))
		} else {
			details["count"] = page.Total
		}
		checks["routes"] = details
		mu.Unlock()
	}()

	wg.Wait()

	overall := "UP"
	if status != http.StatusOK {
		overall = "DOWN"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"time":   time.Now(),
		"checks": checks,
	})
}

// DetailedHealth fornece informações detalhadas sobre o sistema
func (h *HealthChecker) DetailedHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		status = http.StatusOK
		checks = make(map[string]interface{})
	)

	for _, dep := range h.dependencies {
		wg.Add(1)
		go func(d Dependency) {
			defer wg.Done()

			start := time.Now()
			err := d.Check(ctx)
			duration := time.Since(start)

			depStatus := "UP"
			var errMessage interface{}
			if err != nil {
				depStatus = "DOWN"
				errMessage = err.Error()
			}

			mu.Lock()
			if err != nil && d.Critical {
				status = http.StatusServiceUnavailable
			}
			checks[d.Name] = gin.H{
				"status":   depStatus,
				"time":     duration.String(),
				"critical": d.Critical,
				"error":    errMessage,
			}
			mu.Unlock()
		}(dep)
	}

	wg.Wait()

	overall := "UP"
	if status != http.StatusOK {
		overall = "DOWN"
	}

	c.JSON(status, gin.H{
		"status":      overall,
		"time":        time.Now(),
		"version":     getVersion(),
		"environment": getEnvironment(),
		"checks":      checks,
		"system":      getSystemInfo(),
	})
}

// getVersion retorna a versão do aplicativo
func getVersion() string {
	return os.Getenv("APP_VERSION")
}

// getEnvironment retorna o ambiente atual
func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "development"
	}
	return env
}

// getSystemInfo retorna informações sobre o sistema
func getSystemInfo() gin.H {
	return gin.H{
		"go_version":    runtime.Version(),
		"go_os":         runtime.GOOS,
		"go_arch":       runtime.GOARCH,
		"num_cpu":       runtime.NumCPU(),
		"num_goroutine": runtime.NumGoroutine(),
		"memory_alloc":  getMemoryStats(),
	}
}

// getMemoryStats retorna estatísticas de memória
func getMemoryStats() gin.H {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return gin.H{
		"alloc_mb":       float64(m.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(m.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(m.Sys) / 1024 / 1024,
		"num_gc":         m.NumGC,
	}
}
