package executor

import (
	"context"
	"encoding/json"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

type searchSpec struct {
	Index string          `json:"index"`
	Body  json.RawMessage `json:"body"`
}

// executeSearch roda o corpo como busca no índice de texto. Versões podem
// apontar um host próprio na configuração de lógica; senão vale o conector
// compartilhado. Os marcadores $params.chave dentro do corpo são
// substituídos com escape JSON, pois ficam dentro de um documento JSON.
func (e *Executor) executeSearch(ctx context.Context, body string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	var spec searchSpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"corpo OPENSEARCH não é JSON válido", err)
	}

	client := e.conns.Search
	if logicCfg.Host != "" && e.conns.SearchDial != nil {
		adhoc, err := e.conns.SearchDial(logicCfg.Host, logicCfg.User, logicCfg.Password)
		if err != nil {
			return nil, apierrors.NewKind(apierrors.KindConfigurationError,
				"host OpenSearch da versão é inválido: "+truncateError(err), err)
		}
		client = adhoc
	}
	if client == nil {
		return nil, apierrors.NewKind(apierrors.KindConfigurationError,
			"conector OpenSearch não configurado: defina connectors.opensearch.addresses", nil)
	}

	index := spec.Index
	if index == "" {
		index = logicCfg.Index
	}
	if index == "" {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"OPENSEARCH sem índice de destino", nil)
	}

	query := "{}"
	if len(spec.Body) > 0 {
		query = substituteParams(string(spec.Body), params, true)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(logicCfg, e.cfg.QueryTimeout))
	defer cancel()

	docs, err := client.Search(ctx, index, []byte(query))
	if err != nil {
		return nil, e.queryError("OpenSearch", err)
	}
	return &Result{Value: docs, Count: len(docs)}, nil
}
