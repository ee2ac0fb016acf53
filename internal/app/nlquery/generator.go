package nlquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lfardo/api-engine-go/pkg/config"
	"go.uber.org/zap"
)

// Generator transforma uma pergunta em linguagem natural em uma consulta
// SQL. A construção de prompt e a escolha de modelo ficam do lado de
// fora do motor; aqui existe só o contrato.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// HTTPGenerator chama um serviço externo de geração de SQL.
type HTTPGenerator struct {
	cfg    config.NLQueryConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPGenerator cria o gerador apontando para o endpoint configurado.
func NewHTTPGenerator(cfg config.NLQueryConfig, logger *zap.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
}

type generateRequest struct {
	Model    string `json:"model,omitempty"`
	Question string `json:"question"`
}

type generateResponse struct {
	SQL string `json:"sql"`
}

// Generate envia a pergunta ao serviço configurado e extrai a consulta
// da resposta, tolerando cercas de markdown em volta do SQL.
func (g *HTTPGenerator) Generate(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: g.cfg.Model, Question: question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gerador de SQL respondeu %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("resposta do gerador não é JSON válido: %w", err)
	}

	sql := stripFences(out.SQL)
	if sql == "" {
		return "", fmt.Errorf("gerador de SQL devolveu resposta vazia")
	}
	return sql, nil
}

// stripFences remove cercas de markdown que alguns modelos colocam em
// volta do SQL gerado.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// A primeira linha pode ser o rótulo da linguagem ("sql")
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, " \t") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
