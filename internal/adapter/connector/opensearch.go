package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/pkg/config"
)

// OpenSearchConnector executa buscas no cluster configurado e devolve os
// documentos de _source dos hits.
type OpenSearchConnector struct {
	client *opensearch.Client
	logger *zap.Logger
}

func NewOpenSearchConnector(cfg config.OpenSearchConfig, logger *zap.Logger) (*OpenSearchConnector, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("criar cliente OpenSearch: %w", err)
	}
	return &OpenSearchConnector{client: client, logger: logger}, nil
}

// NewAdHocOpenSearchConnector abre um cliente para um host declarado por
// uma versão específica, fora do conector compartilhado.
func NewAdHocOpenSearchConnector(host, user, password string, logger *zap.Logger) (*OpenSearchConnector, error) {
	return NewOpenSearchConnector(config.OpenSearchConfig{
		Addresses:          []string{host},
		Username:           user,
		Password:           password,
		InsecureSkipVerify: true,
	}, logger)
}

// Ping verifica a disponibilidade do cluster.
func (c *OpenSearchConnector) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ping OpenSearch falhou: %s", res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search envia o corpo da busca para o índice e extrai os documentos.
func (c *OpenSearchConnector) Search(ctx context.Context, index string, body []byte) ([]map[string]interface{}, error) {
	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(index),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		payload, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("busca OpenSearch falhou: %s: %s", res.Status(), payload)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decodificar resposta OpenSearch: %w", err)
	}

	docs := make([]map[string]interface{}, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
