package executor

import (
	"context"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// executeAnalytics envia a consulta ao armazém analítico com os
// parâmetros vinculados como escalares tipados. O conector é opcional na
// configuração; ausente, a versão que depende dele falha de forma
// explícita.
func (e *Executor) executeAnalytics(ctx context.Context, query string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	if e.conns.Analytics == nil {
		return nil, apierrors.NewKind(apierrors.KindConfigurationError,
			"conector BigQuery não configurado: defina connectors.bigquery.projectId", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(logicCfg, e.cfg.QueryTimeout))
	defer cancel()

	rows, err := e.conns.Analytics.Query(ctx, query, params)
	if err != nil {
		return nil, e.queryError("BigQuery", err)
	}
	return &Result{Value: rows, Count: len(rows)}, nil
}
