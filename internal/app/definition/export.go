package definition

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/domain/repository"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ExportedRoute é uma rota com suas versões em ordem crescente de
// número, pronta para reimportação.
type ExportedRoute struct {
	model.Route
	Versions []*model.Version `json:"versions"`
}

// ExportDocument é o conjunto completo de definições em formato
// portável. O mesmo documento alimenta o arquivo seed.
type ExportDocument struct {
	ExportedAt time.Time       `json:"exported_at"`
	Routes     []ExportedRoute `json:"routes"`
}

// ImportReport resume o resultado de uma importação.
type ImportReport struct {
	RoutesCreated   int      `json:"routes_created"`
	RoutesRestored  int      `json:"routes_restored"`
	RoutesSkipped   int      `json:"routes_skipped"`
	VersionsCreated int      `json:"versions_created"`
	Errors          []string `json:"errors,omitempty"`
}

// Export monta o documento portável com todas as rotas vivas e suas
// versões.
func (s *Service) Export(ctx context.Context) (*ExportDocument, error) {
	routes, err := s.routes.GetRoutesWithFilters(ctx, repository.RouteFilter{})
	if err != nil {
		return nil, apierrors.InternalServer("falha ao exportar definições", err)
	}

	doc := &ExportDocument{
		ExportedAt: time.Now().UTC(),
		Routes:     make([]ExportedRoute, 0, len(routes)),
	}

	for _, route := range routes {
		versions, err := s.versions.GetVersions(ctx, route.ID)
		if err != nil {
			return nil, apierrors.InternalServer("falha ao exportar versões", err)
		}
		// Repositório devolve decrescente; o documento é crescente para
		// que a reimportação recrie a sequência na ordem original
		for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
			versions[i], versions[j] = versions[j], versions[i]
		}
		doc.Routes = append(doc.Routes, ExportedRoute{Route: *route, Versions: versions})
	}

	return doc, nil
}

// Import recria as definições do documento pelos mesmos caminhos do
// plano administrativo: cada rota e versão passa pelos portões normais
// e gera auditoria. Identidades já vivas são puladas, nunca
// sobrescritas.
func (s *Service) Import(ctx context.Context, doc *ExportDocument, actor Actor) (*ImportReport, error) {
	if doc == nil || len(doc.Routes) == 0 {
		return nil, apierrors.BadRequest("documento de importação sem rotas", nil)
	}

	report := &ImportReport{}
	for _, exported := range doc.Routes {
		s.importRoute(ctx, exported, actor, report)
	}

	s.logger.Info("importação de definições concluída",
		zap.Int("created", report.RoutesCreated),
		zap.Int("restored", report.RoutesRestored),
		zap.Int("skipped", report.RoutesSkipped),
		zap.Int("versions", report.VersionsCreated),
		zap.Int("errors", len(report.Errors)),
		zap.String("actor", actor.Name))
	return report, nil
}

func (s *Service) importRoute(ctx context.Context, exported ExportedRoute, actor Actor, report *ImportReport) {
	route := exported.Route
	route.ID = ""
	route.IsDeleted = false

	existing, err := s.findByIdentity(ctx, route.NormalizedPath(), route.Method)
	if err != nil {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s [%s]: %v", route.Path, route.Method, err))
		return
	}
	if existing != nil && !existing.IsDeleted {
		report.RoutesSkipped++
		return
	}
	restoring := existing != nil

	created, err := s.CreateRoute(ctx, &route, actor)
	if err != nil {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s [%s]: %v", route.Path, route.Method, err))
		return
	}
	if restoring {
		report.RoutesRestored++
	} else {
		report.RoutesCreated++
	}

	for _, version := range exported.Versions {
		v := *version
		v.ID = ""
		v.RouteID = created.ID
		if _, err := s.CreateVersion(ctx, &v, actor); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s [%s] v%d: %v", route.Path, route.Method, version.Number, err))
			continue
		}
		report.VersionsCreated++
	}
}

// MarshalExport serializa o documento em JSON ou YAML.
func MarshalExport(doc *ExportDocument, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		return data, "application/json", err
	case "yaml", "yml":
		// Ponte via JSON para reaproveitar as tags json dos modelos
		bridged, err := json.Marshal(doc)
		if err != nil {
			return nil, "", err
		}
		var generic map[string]interface{}
		if err := json.Unmarshal(bridged, &generic); err != nil {
			return nil, "", err
		}
		data, err := yaml.Marshal(generic)
		return data, "application/x-yaml", err
	default:
		return nil, "", apierrors.BadRequest("formato de exportação não suportado: "+format, nil)
	}
}

// UnmarshalImport aceita o documento em JSON ou YAML.
func UnmarshalImport(data []byte, format string) (*ExportDocument, error) {
	var doc ExportDocument

	switch strings.ToLower(format) {
	case "", "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, apierrors.BadRequest("documento de importação não é JSON válido", err)
		}
	case "yaml", "yml":
		var generic map[string]interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, apierrors.BadRequest("documento de importação não é YAML válido", err)
		}
		bridged, err := json.Marshal(generic)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bridged, &doc); err != nil {
			return nil, apierrors.BadRequest("documento de importação não segue o formato esperado", err)
		}
	default:
		return nil, apierrors.BadRequest("formato de importação não suportado: "+format, nil)
	}

	return &doc, nil
}
