package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

type httpCallSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

// executeHTTPCall repassa a requisição para um serviço externo. A URL
// aceita marcadores :chave e {chave} preenchidos pelos parâmetros; em GET
// os parâmetros restantes viajam na query string, em POST e PUT viajam
// como corpo JSON. A chamada passa pelo circuit breaker do host de
// destino.
func (e *Executor) executeHTTPCall(ctx context.Context, body string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	var spec httpCallSpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"corpo HTTP_CALL não é JSON válido", err)
	}
	if spec.URL == "" {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"HTTP_CALL sem URL de destino", nil)
	}

	method := strings.ToUpper(spec.Method)
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"método HTTP não suportado em HTTP_CALL: "+method, nil)
	}

	target := spec.URL
	for key, value := range params {
		rendered := paramString(value)
		target = strings.ReplaceAll(target, ":"+key, rendered)
		target = strings.ReplaceAll(target, "{"+key+"}", rendered)
	}

	var reqBody io.Reader
	switch method {
	case http.MethodGet:
		parsed, err := url.Parse(target)
		if err != nil {
			return nil, apierrors.NewKind(apierrors.KindExecutionError,
				"URL inválida em HTTP_CALL: "+truncateError(err), err)
		}
		q := parsed.Query()
		for key, value := range params {
			q.Set(key, paramString(value))
		}
		parsed.RawQuery = q.Encode()
		target = parsed.String()
	case http.MethodPost, http.MethodPut:
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, apierrors.NewKind(apierrors.KindExecutionError,
				"parâmetros não serializáveis para o corpo JSON", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(logicCfg, e.cfg.HTTPCallTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"requisição HTTP inválida: "+truncateError(err), err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}

	breaker := e.breakers.Get(req.URL.Host)
	value, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		resp, err := e.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
			var parsed interface{}
			if err := json.Unmarshal(payload, &parsed); err == nil {
				return parsed, nil
			}
		}
		return string(payload), nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierrors.NewKind(apierrors.KindTimeout,
				"tempo limite na chamada HTTP externa", err)
		}
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"erro na chamada HTTP externa: "+truncateError(err), err)
	}

	return &Result{Value: value, Count: resultCount(value)}, nil
}
