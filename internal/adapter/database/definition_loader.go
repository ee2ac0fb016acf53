package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefinitionLoader carrega definições de rotas (rota + versões) de um
// arquivo seed YAML ou JSON. Identidades já existentes são puladas: o
// seed fornece estado inicial, nunca sobrescreve o que o plano
// administrativo criou.
type DefinitionLoader struct {
	routes   repository.RouteRepository
	versions repository.VersionRepository
	logger   *zap.Logger
}

// NewDefinitionLoader cria um novo carregador de definições
func NewDefinitionLoader(routes repository.RouteRepository, versions repository.VersionRepository, logger *zap.Logger) *DefinitionLoader {
	return &DefinitionLoader{
		routes:   routes,
		versions: versions,
		logger:   logger,
	}
}

type routeSeed struct {
	model.Route
	Versions []model.Version `json:"versions"`
}

type definitionFile struct {
	Routes []routeSeed `json:"routes"`
}

// LoadFromFile carrega rotas e versões do arquivo para o banco
func (l *DefinitionLoader) LoadFromFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		l.logger.Warn("Arquivo de definições não encontrado", zap.String("path", path))
		return nil // Não é erro, apenas não há arquivo
	}

	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Error("Erro ao ler arquivo de definições", zap.String("path", path), zap.Error(err))
		return err
	}

	file, err := decodeDefinitions(data, filepath.Ext(path))
	if err != nil {
		l.logger.Error("Erro ao deserializar arquivo de definições", zap.String("path", path), zap.Error(err))
		return err
	}

	if len(file.Routes) == 0 {
		l.logger.Info("Nenhuma rota encontrada no arquivo", zap.String("path", path))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loaded := 0
	for _, seed := range file.Routes {
		if err := l.loadRoute(ctx, seed); err != nil {
			l.logger.Error("Erro ao carregar rota do seed",
				zap.String("path", seed.Path),
				zap.String("method", seed.Method),
				zap.Error(err))
			continue
		}
		loaded++
	}

	l.logger.Info("Definições carregadas",
		zap.Int("loaded", loaded),
		zap.Int("total", len(file.Routes)),
		zap.String("file", filepath.Base(path)))
	return nil
}

func (l *DefinitionLoader) loadRoute(ctx context.Context, seed routeSeed) error {
	if err := seed.Route.Validate(); err != nil {
		return err
	}

	// Identidade já ocupada: seed não sobrescreve
	if _, err := l.routes.GetRouteByPathMethod(ctx, seed.Path, seed.Method); err == nil {
		l.logger.Debug("Rota do seed já existe, pulando",
			zap.String("path", seed.Path),
			zap.String("method", seed.Method))
		return nil
	}

	route := seed.Route
	route.IsActive = true
	if route.CreatedBy == "" {
		route.CreatedBy = "seed"
	}

	newValue, _ := toAuditValue(route)
	if err := l.routes.AddRoute(ctx, &route, &model.AuditEntry{
		Action:      model.AuditCreate,
		NewValue:    newValue,
		Description: "criada via arquivo seed",
		Actor:       route.CreatedBy,
	}); err != nil {
		return err
	}

	for _, version := range seed.Versions {
		version.RouteID = route.ID
		if version.CreatedBy == "" {
			version.CreatedBy = "seed"
		}
		if err := version.Validate(); err != nil {
			return err
		}

		versionValue, _ := toAuditValue(version)
		if _, err := l.versions.CreateVersion(ctx, &version, &model.AuditEntry{
			Action:      model.AuditVersionCreate,
			NewValue:    versionValue,
			Description: "criada via arquivo seed",
			Actor:       version.CreatedBy,
		}); err != nil {
			return err
		}
	}

	return nil
}

// decodeDefinitions aceita YAML e JSON. O YAML passa por uma ponte para
// JSON para reaproveitar as tags json dos modelos de domínio.
func decodeDefinitions(data []byte, ext string) (*definitionFile, error) {
	var file definitionFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		bridged, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bridged, &file); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("extensão de arquivo de definições não suportada: %s", ext)
	}

	return &file, nil
}

// toAuditValue projeta um valor de domínio para o formato map das
// colunas de auditoria
func toAuditValue(v interface{}) (map[string]interface{}, error) {
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
