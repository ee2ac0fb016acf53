package nlquery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"go.uber.org/zap"
)

// Runner executa consultas avulsas já aprovadas pelo analisador.
type Runner interface {
	QueryAdHoc(ctx context.Context, query string, maxRows int) ([]map[string]interface{}, []string, error)
}

// QueryResult é o desfecho de uma consulta em linguagem natural. Quando
// a análise reprova, o relatório explica o porquê e nada é executado;
// isso é um resultado, não um erro.
type QueryResult struct {
	Question         string                   `json:"question"`
	GeneratedSQL     string                   `json:"generated_sql,omitempty"`
	ExecutedSQL      string                   `json:"executed_sql,omitempty"`
	ExecutionAllowed bool                     `json:"execution_allowed"`
	Analysis         model.AnalysisReport     `json:"analysis"`
	Rows             []map[string]interface{} `json:"rows,omitempty"`
	Count            int                      `json:"count"`
	ElapsedMS        int64                    `json:"elapsed_ms"`
}

// Service orquestra o caminho pergunta → SQL → análise → execução.
type Service struct {
	analyzer  *security.Analyzer
	generator Generator
	runner    Runner
	cfg       config.NLQueryConfig
	logger    *zap.Logger
}

func NewService(analyzer *security.Analyzer, generator Generator, runner Runner, cfg config.NLQueryConfig, logger *zap.Logger) *Service {
	return &Service{
		analyzer:  analyzer,
		generator: generator,
		runner:    runner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Query percorre o caminho completo. A pré-checagem de intenção roda
// antes de qualquer chamada ao gerador; perguntas destrutivas nunca
// viram SQL.
func (s *Service) Query(ctx context.Context, question string, maxRows int) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apierrors.BadRequest("pergunta vazia", nil)
	}

	result := &QueryResult{Question: question}

	intent := s.analyzer.Analyze("", question)
	if !intent.ExecutionAllowed {
		result.Analysis = intent
		s.logger.Warn("pergunta com intenção destrutiva bloqueada",
			zap.String("risk", intent.Risk.String()))
		return result, nil
	}

	if s.generator == nil {
		return nil, apierrors.NewKind(apierrors.KindConfigurationError,
			"gerador de SQL não configurado: defina nlquery.endpoint", nil)
	}

	genCtx, cancelGen := context.WithTimeout(ctx, s.timeout())
	defer cancelGen()

	generated, err := s.generator.Generate(genCtx, question)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierrors.NewKind(apierrors.KindTimeout,
				"tempo limite na geração de SQL", err)
		}
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"falha ao gerar SQL a partir da pergunta", err)
	}
	result.GeneratedSQL = generated

	report := s.analyzer.Analyze(generated, question)
	result.Analysis = report
	if !report.ExecutionAllowed {
		s.logger.Warn("SQL gerado reprovado pelo analisador",
			zap.String("risk", report.Risk.String()),
			zap.Int("violations", len(report.Violations)))
		return result, nil
	}

	ceiling := s.effectiveMaxRows(maxRows)
	query := security.ClampLimit(report.SanitizedQuery, ceiling)
	result.ExecutedSQL = query

	execCtx, cancelExec := context.WithTimeout(ctx, s.timeout())
	defer cancelExec()

	start := time.Now()
	rows, _, err := s.runner.QueryAdHoc(execCtx, query, ceiling)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierrors.NewKind(apierrors.KindTimeout,
				"tempo de execução excedido na consulta gerada", err)
		}
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"erro na execução da consulta gerada", err)
	}

	result.ExecutionAllowed = true
	result.Rows = rows
	result.Count = len(rows)
	result.ElapsedMS = time.Since(start).Milliseconds()

	s.logger.Info("consulta em linguagem natural executada",
		zap.String("risk", report.Risk.String()),
		zap.Int("rows", result.Count),
		zap.Int64("elapsedMS", result.ElapsedMS))
	return result, nil
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 60 * time.Second
}

// effectiveMaxRows resolve o teto de linhas: o chamador pode apertar o
// limite configurado, nunca afrouxar.
func (s *Service) effectiveMaxRows(requested int) int {
	limit := s.cfg.MaxRows
	if limit <= 0 {
		limit = 100
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}
