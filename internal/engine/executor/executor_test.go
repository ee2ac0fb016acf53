package executor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/engine/executor"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/internal/testutils"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/lfardo/api-engine-go/pkg/resilience"
)

func newTestExecutor(t *testing.T, conns executor.Connectors) (*executor.Executor, *gorm.DB) {
	t.Helper()

	db := testutils.TestDatabase(t)
	logger := testutils.TestLogger(t)
	analyzer := security.NewAnalyzer(config.SecurityConfig{
		MaxRiskLevel: "safe",
		DefaultLimit: 1000,
	}, logger)
	breakers := resilience.NewRegistry(resilience.CircuitBreakerConfig{
		MaxRequestsFail: 3,
		Timeout:         time.Minute,
	}, logger, nil)

	exec := executor.NewExecutor(db, analyzer, config.EngineConfig{
		QueryTimeout:    5 * time.Second,
		HTTPCallTimeout: 5 * time.Second,
		MaxResultRows:   1000,
		MaxPipelineLen:  10,
	}, conns, breakers, logger)

	return exec, db
}

func seedProducts(t *testing.T, db *gorm.DB) {
	t.Helper()

	require.NoError(t, db.Exec(
		`CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, price REAL, active INTEGER)`,
	).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, name, price, active) VALUES
			(1, 'Monitor', 899.90, 1),
			(2, 'Teclado', 149.50, 1),
			(3, 'Mouse', 79.90, 0)`,
	).Error)
}

func requireKind(t *testing.T, err error, kind apierrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apierrors.KindOf(err))
}

func TestExecutor_SQL(t *testing.T) {
	exec, db := newTestExecutor(t, executor.Connectors{})
	seedProducts(t, db)
	ctx := context.Background()

	t.Run("SelectReturnsRows", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT id, name FROM products ORDER BY id", nil, model.LogicConfig{})
		require.NoError(t, err)

		rows, ok := res.Value.([]map[string]interface{})
		require.True(t, ok, "SELECT must produce a list of rows")
		require.Len(t, rows, 3)
		assert.Equal(t, 3, res.Count)
		assert.Equal(t, "Monitor", rows[0]["name"])
		assert.EqualValues(t, 1, rows[0]["id"])
	})

	t.Run("NamedParamsBind", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT name FROM products WHERE id = :id",
			map[string]interface{}{"id": 2}, model.LogicConfig{})
		require.NoError(t, err)

		rows := res.Value.([]map[string]interface{})
		require.Len(t, rows, 1)
		assert.Equal(t, "Teclado", rows[0]["name"])
	})

	t.Run("ParamsWithoutPlaceholdersAreIgnored", func(t *testing.T) {
		// Extra params must not be sent to the driver when the statement
		// has no matching placeholder.
		res, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT COUNT(*) AS total FROM products",
			map[string]interface{}{"limit": 10, "page": 1}, model.LogicConfig{})
		require.NoError(t, err)

		rows := res.Value.([]map[string]interface{})
		require.Len(t, rows, 1)
		assert.EqualValues(t, 3, rows[0]["total"])
	})

	t.Run("WriteReturnsAffectedRows", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicSQL,
			"UPDATE products SET active = 1 WHERE price > :min",
			map[string]interface{}{"min": 100.0}, model.LogicConfig{})
		require.NoError(t, err)

		assert.Equal(t, map[string]interface{}{"affected_rows": 2}, res.Value)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("MaxRowsClampsResult", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT id FROM products ORDER BY id", nil,
			model.LogicConfig{MaxRows: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("DangerousKeywordRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicSQL,
			"DROP TABLE products", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindDangerousSQL)
	})

	t.Run("MultipleStatementsRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT 1; SELECT 2", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindMultipleStatements)
	})

	t.Run("SyntaxErrorBecomesExecutionError", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicSQL,
			"SELECT FROM WHERE", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})
}

func TestExecutor_MultiSQL(t *testing.T) {
	exec, db := newTestExecutor(t, executor.Connectors{})
	seedProducts(t, db)
	ctx := context.Background()

	t.Run("NamedResultsAndTotalCount", func(t *testing.T) {
		body := `{"queries": [
			{"name": "items", "sql": "SELECT id, name FROM products WHERE active = 1 ORDER BY id"},
			{"name": "summary", "sql": "SELECT COUNT(*) AS total FROM products"}
		]}`
		res, err := exec.Execute(ctx, model.LogicMultiSQL, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		results := res.Value.(map[string]interface{})
		require.Contains(t, results, "items")
		require.Contains(t, results, "summary")
		assert.Equal(t, 3, res.Count, "count must be the sum of sub-query counts")
	})

	t.Run("DefaultNameAndEmptySQLSkipped", func(t *testing.T) {
		body := `{"queries": [
			{"sql": "SELECT 1 AS one"},
			{"name": "blank", "sql": "   "}
		]}`
		res, err := exec.Execute(ctx, model.LogicMultiSQL, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		results := res.Value.(map[string]interface{})
		require.Contains(t, results, "query_0")
		assert.NotContains(t, results, "blank")
	})

	t.Run("FirstRowFeedsLaterQueries", func(t *testing.T) {
		body := `{"queries": [
			{"name": "first", "sql": "SELECT id FROM products WHERE name = 'Teclado'"},
			{"name": "picked", "sql": "SELECT name FROM products WHERE id = :first_id"}
		]}`
		res, err := exec.Execute(ctx, model.LogicMultiSQL, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		results := res.Value.(map[string]interface{})
		picked := results["picked"].([]map[string]interface{})
		require.Len(t, picked, 1)
		assert.Equal(t, "Teclado", picked[0]["name"])
	})

	t.Run("SubQueryFailureIsRecordedAndExecutionContinues", func(t *testing.T) {
		body := `{"queries": [
			{"name": "broken", "sql": "SELECT FROM nowhere"},
			{"name": "after", "sql": "SELECT COUNT(*) AS total FROM products"}
		]}`
		res, err := exec.Execute(ctx, model.LogicMultiSQL, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		results := res.Value.(map[string]interface{})
		broken := results["broken"].(map[string]interface{})
		assert.Contains(t, broken, "error")
		assert.Contains(t, results, "after")
		assert.Equal(t, 1, res.Count, "failed sub-queries must not add to the count")
	})

	t.Run("SecurityGateAbortsEverything", func(t *testing.T) {
		body := `{"queries": [
			{"name": "ok", "sql": "SELECT 1 AS one"},
			{"name": "bad", "sql": "DROP TABLE products"}
		]}`
		_, err := exec.Execute(ctx, model.LogicMultiSQL, body, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindDangerousSQL)

		// The table must still exist: the transaction was rolled back.
		var count int64
		require.NoError(t, db.Raw("SELECT COUNT(*) FROM products").Scan(&count).Error)
		assert.EqualValues(t, 3, count)
	})

	t.Run("InvalidJSONRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicMultiSQL, "{queries:", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})

	t.Run("EmptyQueriesRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicMultiSQL, `{"queries": []}`, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})
}

func TestExecutor_Pipeline(t *testing.T) {
	exec, db := newTestExecutor(t, executor.Connectors{})
	seedProducts(t, db)
	ctx := context.Background()

	t.Run("OutputFeedsNextStep", func(t *testing.T) {
		body := `{"steps": [
			{"type": "SQL", "body": "SELECT id, name FROM products WHERE active = 1", "output": "rows"},
			{"type": "PYTHON_EXPR", "body": "len(params['rows'])"}
		]}`
		res, err := exec.Execute(ctx, model.LogicPipeline, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		assert.Equal(t, 2, res.Value, "second step must see the first step's output")
		assert.Equal(t, 1, res.Count)
	})

	t.Run("LastStepResultWins", func(t *testing.T) {
		body := `{"steps": [
			{"type": "SQL", "body": "SELECT id FROM products", "output": "ignored"},
			{"type": "STATIC_RESPONSE", "body": "{\"done\": true}"}
		]}`
		res, err := exec.Execute(ctx, model.LogicPipeline, body, nil, model.LogicConfig{})
		require.NoError(t, err)

		assert.Equal(t, map[string]interface{}{"done": true}, res.Value)
	})

	t.Run("StepTypeDefaultsToSQL", func(t *testing.T) {
		body := `{"steps": [{"body": "SELECT COUNT(*) AS total FROM products"}]}`
		res, err := exec.Execute(ctx, model.LogicPipeline, body, nil, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("NestedPipelineRejected", func(t *testing.T) {
		body := `{"steps": [{"type": "PIPELINE", "body": "{\"steps\": []}"}]}`
		_, err := exec.Execute(ctx, model.LogicPipeline, body, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
		assert.Contains(t, err.Error(), "pipeline")
	})

	t.Run("EmptyPipelineRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicPipeline, `{"steps": []}`, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})

	t.Run("StepLimitEnforced", func(t *testing.T) {
		steps := make([]map[string]interface{}, 11)
		for i := range steps {
			steps[i] = map[string]interface{}{"body": "SELECT 1 AS one"}
		}
		body, err := json.Marshal(map[string]interface{}{"steps": steps})
		require.NoError(t, err)

		_, execErr := exec.Execute(ctx, model.LogicPipeline, string(body), nil, model.LogicConfig{})
		requireKind(t, execErr, apierrors.KindExecutionError)
		assert.Contains(t, execErr.Error(), "limite")
	})

	t.Run("FailingStepAbortsChain", func(t *testing.T) {
		body := `{"steps": [
			{"type": "SQL", "body": "SELECT FROM nowhere"},
			{"type": "STATIC_RESPONSE", "body": "never"}
		]}`
		_, err := exec.Execute(ctx, model.LogicPipeline, body, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})
}

func TestExecutor_Expression(t *testing.T) {
	exec, _ := newTestExecutor(t, executor.Connectors{})
	ctx := context.Background()

	t.Run("ArithmeticOverParams", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicExpression,
			"params['a'] + params['b']",
			map[string]interface{}{"a": 10, "b": 20}, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, 30, res.Value)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("ListResultCountsElements", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicExpression,
			"filter(params['items'], # > 2)",
			map[string]interface{}{"items": []interface{}{1, 2, 3, 4}}, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{3, 4}, res.Value)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("MapResultCountsKeys", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicExpression,
			`{"total": len(params['items']), "ok": true}`,
			map[string]interface{}{"items": []interface{}{1, 2}}, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("SyntaxErrorRejected", func(t *testing.T) {
		_, err := exec.Execute(ctx, model.LogicExpression,
			"params[", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
		assert.Contains(t, err.Error(), "expressão inválida")
	})

	t.Run("DeniedTokensRejectedBeforeCompile", func(t *testing.T) {
		// The interpreter has no import, file or process builtins; the
		// deny list just turns the attempt into a clear refusal.
		for _, body := range []string{
			"__import__('os')",
			"eval('1+1')",
			"os.getenv('HOME')",
		} {
			_, err := exec.Execute(ctx, model.LogicExpression, body, nil, model.LogicConfig{})
			requireKind(t, err, apierrors.KindExecutionError)
			assert.Contains(t, err.Error(), "proibido", "body: %s", body)
		}
	})

	t.Run("DenyListMatchesSubstrings", func(t *testing.T) {
		// Same conservatism as the SQL keyword gate: a param key that
		// merely contains a denied token is still refused.
		_, err := exec.Execute(ctx, model.LogicExpression,
			"params['executive_id']",
			map[string]interface{}{"executive_id": 1}, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})
}

func TestExecutor_Static(t *testing.T) {
	exec, _ := newTestExecutor(t, executor.Connectors{})
	ctx := context.Background()

	t.Run("JSONBodyIsParsed", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicStatic,
			`{"message": "olá, $params.name", "version": 1}`,
			map[string]interface{}{"name": "mundo"}, model.LogicConfig{})
		require.NoError(t, err)

		parsed := res.Value.(map[string]interface{})
		assert.Equal(t, "olá, mundo", parsed["message"])
		assert.Equal(t, 1, res.Count)
	})

	t.Run("PlainTextKeptAsIs", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicStatic,
			"status: $params.status",
			map[string]interface{}{"status": "ok"}, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, "status: ok", res.Value)
	})

	t.Run("LongerKeysSubstitutedFirst", func(t *testing.T) {
		// "user" must not clobber the "user_id" placeholder.
		res, err := exec.Execute(ctx, model.LogicStatic,
			`{"id": "$params.user_id", "name": "$params.user"}`,
			map[string]interface{}{"user": "lia", "user_id": "42"}, model.LogicConfig{})
		require.NoError(t, err)

		parsed := res.Value.(map[string]interface{})
		assert.Equal(t, "42", parsed["id"])
		assert.Equal(t, "lia", parsed["name"])
	})

	t.Run("NonStringParamsRenderAsJSON", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicStatic,
			`{"n": $params.count, "flag": $params.on}`,
			map[string]interface{}{"count": 5, "on": true}, model.LogicConfig{})
		require.NoError(t, err)

		parsed := res.Value.(map[string]interface{})
		assert.EqualValues(t, 5, parsed["n"])
		assert.Equal(t, true, parsed["flag"])
	})

	t.Run("CountIsAlwaysOne", func(t *testing.T) {
		res, err := exec.Execute(ctx, model.LogicStatic,
			`["a", "b", "c"]`, nil, model.LogicConfig{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count, "static responses count as a single item")
	})
}

type fakeAnalytics struct {
	lastQuery  string
	lastParams map[string]interface{}
	rows       []map[string]interface{}
	err        error
}

func (f *fakeAnalytics) Query(_ context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	f.lastQuery = query
	f.lastParams = params
	return f.rows, f.err
}

type fakeSearch struct {
	lastIndex string
	lastBody  string
	docs      []map[string]interface{}
	err       error
}

func (f *fakeSearch) Search(_ context.Context, index string, body []byte) ([]map[string]interface{}, error) {
	f.lastIndex = index
	f.lastBody = string(body)
	return f.docs, f.err
}

func TestExecutor_Analytics(t *testing.T) {
	ctx := context.Background()

	t.Run("QueriesConnector", func(t *testing.T) {
		fake := &fakeAnalytics{rows: []map[string]interface{}{
			{"day": "2026-08-01", "total": 10},
			{"day": "2026-08-02", "total": 12},
		}}
		exec, _ := newTestExecutor(t, executor.Connectors{Analytics: fake})

		res, err := exec.Execute(ctx, model.LogicBigQuery,
			"SELECT day, total FROM stats WHERE region = @region",
			map[string]interface{}{"region": "br"}, model.LogicConfig{})
		require.NoError(t, err)

		assert.Equal(t, 2, res.Count)
		assert.Contains(t, fake.lastQuery, "stats")
		assert.Equal(t, "br", fake.lastParams["region"])
	})

	t.Run("ConnectorErrorBecomesExecutionError", func(t *testing.T) {
		fake := &fakeAnalytics{err: assert.AnError}
		exec, _ := newTestExecutor(t, executor.Connectors{Analytics: fake})

		_, err := exec.Execute(ctx, model.LogicBigQuery, "SELECT 1", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
		assert.Contains(t, err.Error(), "BigQuery")
	})

	t.Run("UnconfiguredConnectorRejected", func(t *testing.T) {
		exec, _ := newTestExecutor(t, executor.Connectors{})

		_, err := exec.Execute(ctx, model.LogicBigQuery, "SELECT 1", nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindConfigurationError)
	})
}

func TestExecutor_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("SubstitutesParamsInsideBody", func(t *testing.T) {
		fake := &fakeSearch{docs: []map[string]interface{}{{"title": "monitor 4k"}}}
		exec, _ := newTestExecutor(t, executor.Connectors{Search: fake})

		body := `{"index": "catalog", "body": {"query": {"match": {"title": "$params.keyword"}}}}`
		res, err := exec.Execute(ctx, model.LogicOpenSearch, body,
			map[string]interface{}{"keyword": `mo"nitor`}, model.LogicConfig{})
		require.NoError(t, err)

		assert.Equal(t, "catalog", fake.lastIndex)
		assert.Contains(t, fake.lastBody, `mo\"nitor`,
			"string params must be JSON-escaped inside the search body")
		assert.Equal(t, 1, res.Count)
	})

	t.Run("IndexFallsBackToLogicConfig", func(t *testing.T) {
		fake := &fakeSearch{}
		exec, _ := newTestExecutor(t, executor.Connectors{Search: fake})

		_, err := exec.Execute(ctx, model.LogicOpenSearch,
			`{"body": {"query": {"match_all": {}}}}`, nil,
			model.LogicConfig{Index: "fallback"})
		require.NoError(t, err)
		assert.Equal(t, "fallback", fake.lastIndex)
	})

	t.Run("MissingIndexRejected", func(t *testing.T) {
		exec, _ := newTestExecutor(t, executor.Connectors{Search: &fakeSearch{}})

		_, err := exec.Execute(ctx, model.LogicOpenSearch, `{"body": {}}`, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindExecutionError)
	})

	t.Run("VersionHostUsesDialer", func(t *testing.T) {
		shared := &fakeSearch{}
		adhoc := &fakeSearch{}
		var dialedHost, dialedUser string
		exec, _ := newTestExecutor(t, executor.Connectors{
			Search: shared,
			SearchDial: func(host, user, password string) (executor.SearchQuerier, error) {
				dialedHost = host
				dialedUser = user
				return adhoc, nil
			},
		})

		_, err := exec.Execute(ctx, model.LogicOpenSearch,
			`{"index": "logs", "body": {}}`, nil,
			model.LogicConfig{Host: "https://other:9200", User: "svc"})
		require.NoError(t, err)

		assert.Equal(t, "https://other:9200", dialedHost)
		assert.Equal(t, "svc", dialedUser)
		assert.Equal(t, "logs", adhoc.lastIndex, "the ad-hoc client must serve the call")
		assert.Empty(t, shared.lastIndex)
	})

	t.Run("UnconfiguredConnectorRejected", func(t *testing.T) {
		exec, _ := newTestExecutor(t, executor.Connectors{})

		_, err := exec.Execute(ctx, model.LogicOpenSearch,
			`{"index": "catalog", "body": {}}`, nil, model.LogicConfig{})
		requireKind(t, err, apierrors.KindConfigurationError)
	})
}

func TestExecutor_UnsupportedType(t *testing.T) {
	exec, _ := newTestExecutor(t, executor.Connectors{})

	_, err := exec.Execute(context.Background(), model.LogicType("GRAPHQL"),
		"{}", nil, model.LogicConfig{})
	requireKind(t, err, apierrors.KindUnsupportedLogic)
}
