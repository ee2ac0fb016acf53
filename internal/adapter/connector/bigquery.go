package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lfardo/api-engine-go/pkg/config"
)

// BigQueryConnector executa consultas no BigQuery com parâmetros
// vinculados como escalares tipados. O cliente é criado sob demanda na
// primeira consulta para que o processo suba mesmo sem credenciais, já que
// o conector é opcional.
type BigQueryConnector struct {
	cfg    config.BigQueryConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *bigquery.Client
}

func NewBigQueryConnector(cfg config.BigQueryConfig, logger *zap.Logger) *BigQueryConnector {
	return &BigQueryConnector{cfg: cfg, logger: logger}
}

func (c *BigQueryConnector) ensureClient(ctx context.Context) (*bigquery.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	var opts []option.ClientOption
	if c.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, c.cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("criar cliente BigQuery: %w", err)
	}
	c.client = client
	c.logger.Info("cliente BigQuery criado", zap.String("project", c.cfg.ProjectID))
	return client, nil
}

// Query roda a consulta e materializa o resultado como lista de mapas.
// Parâmetros não escalares são enviados como a sua forma textual.
func (c *BigQueryConnector) Query(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	q := client.Query(query)
	if c.cfg.Location != "" {
		q.Location = c.cfg.Location
	}
	for key, value := range params {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{
			Name:  key,
			Value: scalarParam(value),
		})
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0)
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(row))
		for col, val := range row {
			out[col] = normalizeBQValue(val)
		}
		rows = append(rows, out)
	}
	return rows, nil
}

// Ping confirma que o cliente consegue ser criado com as credenciais
// atuais. Não consome slots de consulta.
func (c *BigQueryConnector) Ping(ctx context.Context) error {
	_, err := c.ensureClient(ctx)
	return err
}

func scalarParam(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64, float64, bool, string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func normalizeBQValue(v bigquery.Value) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	case []bigquery.Value:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeBQValue(item)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = normalizeBQValue(item)
		}
		return out
	default:
		return v
	}
}
