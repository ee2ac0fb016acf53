package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/lfardo/api-engine-go/pkg/resilience"
)

// Result é a saída uniforme de qualquer tipo de lógica: o valor produzido
// e a contagem que alimenta a seleção de status na formatação.
type Result struct {
	Value interface{}
	Count int
}

// AnalyticsQuerier executa consultas parametrizadas no armazém analítico
// externo. A implementação real vive no adaptador de conectores.
type AnalyticsQuerier interface {
	Query(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error)
}

// SearchQuerier executa buscas no índice de texto externo e devolve os
// documentos encontrados.
type SearchQuerier interface {
	Search(ctx context.Context, index string, body []byte) ([]map[string]interface{}, error)
}

// SearchDialFunc abre um cliente de busca avulso para versões que declaram
// um host próprio na configuração de lógica.
type SearchDialFunc func(host, user, password string) (SearchQuerier, error)

// Connectors agrupa os clientes externos opcionais do executor. Campos nil
// significam conector não configurado: a execução correspondente falha com
// CONFIGURATION_ERROR, nunca com um no-op silencioso.
type Connectors struct {
	Analytics  AnalyticsQuerier
	Search     SearchQuerier
	SearchDial SearchDialFunc
}

// Executor interpreta o corpo lógico de uma versão conforme o tipo
// declarado. O dispatch é exaustivo sobre o conjunto fechado de tipos;
// cada ramo devolve um Result ou um erro tipado, nunca o erro cru do
// conector subjacente.
type Executor struct {
	db       *gorm.DB
	analyzer *security.Analyzer
	cfg      config.EngineConfig
	conns    Connectors
	breakers *resilience.Registry
	client   *http.Client
	logger   *zap.Logger

	exprMu    sync.RWMutex
	exprCache map[string]*vm.Program
}

// NewExecutor monta o executor sobre o banco de dados de consulta. Os
// timeouts de cliente HTTP são por chamada, via contexto, então o client
// compartilhado fica sem timeout próprio.
func NewExecutor(
	db *gorm.DB,
	analyzer *security.Analyzer,
	cfg config.EngineConfig,
	conns Connectors,
	breakers *resilience.Registry,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		db:        db,
		analyzer:  analyzer,
		cfg:       cfg,
		conns:     conns,
		breakers:  breakers,
		client:    &http.Client{},
		logger:    logger,
		exprCache: make(map[string]*vm.Program),
	}
}

// Execute interpreta um corpo lógico e devolve o resultado com a contagem.
// Parâmetros já devem ter passado pela validação da versão.
func (e *Executor) Execute(ctx context.Context, logicType model.LogicType, body string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	return e.execute(ctx, logicType, body, params, logicCfg, false)
}

func (e *Executor) execute(ctx context.Context, logicType model.LogicType, body string, params map[string]interface{}, logicCfg model.LogicConfig, inPipeline bool) (*Result, error) {
	switch logicType {
	case model.LogicSQL:
		return e.executeSQL(ctx, body, params, logicCfg)
	case model.LogicMultiSQL:
		return e.executeMultiSQL(ctx, body, params, logicCfg)
	case model.LogicPipeline:
		if inPipeline {
			return nil, apierrors.NewKind(apierrors.KindExecutionError,
				"um pipeline não pode conter outro pipeline", nil)
		}
		return e.executePipeline(ctx, body, params, logicCfg)
	case model.LogicBigQuery:
		return e.executeAnalytics(ctx, body, params, logicCfg)
	case model.LogicOpenSearch:
		return e.executeSearch(ctx, body, params, logicCfg)
	case model.LogicExpression:
		return e.executeExpression(body, params)
	case model.LogicHTTPCall:
		return e.executeHTTPCall(ctx, body, params, logicCfg)
	case model.LogicStatic:
		return executeStatic(body, params)
	default:
		return nil, apierrors.NewKind(apierrors.KindUnsupportedLogic,
			"tipo de lógica não suportado: "+string(logicType), nil)
	}
}

// executeSQL roda uma única instrução parametrizada dentro de uma
// transação com timeout. SELECT vira lista de linhas; qualquer outra
// instrução vira a contagem de linhas afetadas. Falhas desfazem a
// transação antes de subir o erro.
func (e *Executor) executeSQL(ctx context.Context, query string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	if err := e.analyzer.ValidateStatement(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(logicCfg, e.cfg.QueryTimeout))
	defer cancel()

	var result *Result
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = runStatement(tx, query, params, e.maxRows(logicCfg))
		return err
	})
	if err != nil {
		return nil, e.queryError("SQL", err)
	}
	return result, nil
}

type multiSQLSpec struct {
	Queries []struct {
		Name string `json:"name"`
		SQL  string `json:"sql"`
	} `json:"queries"`
}

// executeMultiSQL roda sub-consultas nomeadas em sequência, numa única
// transação. Cada sub-consulta enxerga os parâmetros originais mais as
// chaves sintetizadas {nome}_{coluna} da primeira linha de resultados
// anteriores. A falha de uma sub-consulta é registrada como {"error": ...}
// sem abortar as demais; só o portão de segurança aborta tudo.
func (e *Executor) executeMultiSQL(ctx context.Context, body string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	var spec multiSQLSpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"corpo MULTI_SQL não é JSON válido", err)
	}
	if len(spec.Queries) == 0 {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"MULTI_SQL sem consultas para executar", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(logicCfg, e.cfg.QueryTimeout))
	defer cancel()

	results := make(map[string]interface{})
	total := 0
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, q := range spec.Queries {
			name := q.Name
			if name == "" {
				name = fmt.Sprintf("query_%d", len(results))
			}
			if strings.TrimSpace(q.SQL) == "" {
				continue
			}
			if err := e.analyzer.ValidateStatement(q.SQL); err != nil {
				return err
			}

			merged := mergeResultParams(params, results)
			res, err := runStatement(tx, q.SQL, merged, e.maxRows(logicCfg))
			if err != nil {
				e.logger.Warn("sub-consulta do MULTI_SQL falhou",
					zap.String("name", name), zap.Error(err))
				results[name] = map[string]interface{}{"error": truncateError(err)}
				continue
			}
			results[name] = res.Value
			total += res.Count
		}
		return nil
	})
	if err != nil {
		return nil, e.queryError("MULTI_SQL", err)
	}
	return &Result{Value: results, Count: total}, nil
}

// mergeResultParams acrescenta aos parâmetros as colunas da primeira linha
// de cada resultado de lista anterior, sob a chave {nome}_{coluna}.
func mergeResultParams(params map[string]interface{}, results map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(params))
	for k, v := range params {
		merged[k] = v
	}
	for name, value := range results {
		rows, ok := value.([]map[string]interface{})
		if !ok || len(rows) == 0 {
			continue
		}
		for col, val := range rows[0] {
			merged[name+"_"+col] = val
		}
	}
	return merged
}

type pipelineSpec struct {
	Steps []pipelineStep `json:"steps"`
}

type pipelineStep struct {
	Type   string `json:"type"`
	Body   string `json:"body"`
	Output string `json:"output,omitempty"`
}

// executePipeline encadeia passos estritamente em ordem: cada passo
// reentra o dispatch com os parâmetros estendidos pelas saídas anteriores
// sob a chave declarada em output. O resultado final é o do último passo.
func (e *Executor) executePipeline(ctx context.Context, body string, params map[string]interface{}, logicCfg model.LogicConfig) (*Result, error) {
	var spec pipelineSpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"corpo PIPELINE não é JSON válido", err)
	}
	if len(spec.Steps) == 0 {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"pipeline sem passos para executar", nil)
	}
	if max := e.cfg.MaxPipelineLen; max > 0 && len(spec.Steps) > max {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			fmt.Sprintf("pipeline excede o limite de %d passos", max), nil)
	}

	current := make(map[string]interface{}, len(params))
	for k, v := range params {
		current[k] = v
	}

	var last *Result
	for i, step := range spec.Steps {
		stepType := model.LogicType(step.Type)
		if step.Type == "" {
			stepType = model.LogicSQL
		}

		res, err := e.execute(ctx, stepType, step.Body, current, logicCfg, true)
		if err != nil {
			e.logger.Warn("passo do pipeline falhou",
				zap.Int("step", i), zap.String("type", string(stepType)), zap.Error(err))
			return nil, err
		}

		last = res
		if step.Output != "" {
			current[step.Output] = res.Value
		}
	}

	if last == nil {
		return &Result{Value: nil, Count: 0}, nil
	}
	return last, nil
}

// QueryAdHoc executa uma consulta SELECT avulsa fora do ciclo de versões,
// retornando as colunas na ordem do cursor. Serve o caminho de linguagem
// natural e o testador administrativo; a consulta já deve ter passado
// pelo analisador de segurança.
func (e *Executor) QueryAdHoc(ctx context.Context, query string, maxRows int) ([]map[string]interface{}, []string, error) {
	if maxRows <= 0 {
		maxRows = e.cfg.MaxResultRows
	}

	rows, err := e.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	data, err := scanRows(rows, maxRows)
	if err != nil {
		return nil, nil, err
	}
	return data, cols, nil
}

// runStatement executa uma instrução já aprovada pelo portão de segurança
// dentro da transação recebida.
func runStatement(tx *gorm.DB, query string, params map[string]interface{}, maxRows int) (*Result, error) {
	stmt, args := bindNamedParams(query, params)

	if isSelect(query) {
		rows, err := tx.Raw(stmt, args...).Rows()
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		data, err := scanRows(rows, maxRows)
		if err != nil {
			return nil, err
		}
		return &Result{Value: data, Count: len(data)}, nil
	}

	res := tx.Exec(stmt, args...)
	if res.Error != nil {
		return nil, res.Error
	}
	affected := int(res.RowsAffected)
	return &Result{
		Value: map[string]interface{}{"affected_rows": affected},
		Count: affected,
	}, nil
}

// namedParamRe casa :nome fora de posições coladas a palavras ou a outro
// dois-pontos, preservando casts e literais de horário.
var namedParamRe = regexp.MustCompile(`(^|[^:\w\\]):(\w+)`)

// bindNamedParams reescreve os marcadores :nome presentes nos parâmetros
// para a forma @nome de argumentos nomeados do GORM. Marcadores sem
// parâmetro correspondente ficam intactos.
func bindNamedParams(query string, params map[string]interface{}) (string, []interface{}) {
	matched := false
	rewritten := namedParamRe.ReplaceAllStringFunc(query, func(m string) string {
		sub := namedParamRe.FindStringSubmatch(m)
		if _, ok := params[sub[2]]; !ok {
			return m
		}
		matched = true
		return sub[1] + "@" + sub[2]
	})
	if !matched {
		return query, nil
	}
	return rewritten, []interface{}{params}
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// scanRows materializa o cursor como lista de mapas coluna→valor,
// normalizando tipos do driver para formas serializáveis em JSON.
func scanRows(rows *sql.Rows, maxRows int) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := make([]map[string]interface{}, 0)
	for rows.Next() {
		if maxRows > 0 && len(data) >= maxRows {
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	return data, rows.Err()
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

func (e *Executor) timeoutFor(logicCfg model.LogicConfig, fallback time.Duration) time.Duration {
	if logicCfg.TimeoutSeconds > 0 {
		return time.Duration(logicCfg.TimeoutSeconds) * time.Second
	}
	if fallback > 0 {
		return fallback
	}
	return 30 * time.Second
}

func (e *Executor) maxRows(logicCfg model.LogicConfig) int {
	if logicCfg.MaxRows > 0 {
		return logicCfg.MaxRows
	}
	return e.cfg.MaxResultRows
}

// queryError converte uma falha de consulta no erro tipado da taxonomia:
// deadline vira TIMEOUT, erros já tipados passam adiante e o restante vira
// EXECUTION_ERROR com o nome do conector e a mensagem truncada.
func (e *Executor) queryError(connector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.NewKind(apierrors.KindTimeout,
			"tempo de execução excedido em "+connector, err)
	}
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apierrors.NewKind(apierrors.KindExecutionError,
		fmt.Sprintf("erro na execução %s: %s", connector, truncateError(err)), err)
}

// truncateError limita a mensagem propagada ao chamador; o erro original
// completo permanece disponível via Unwrap para logging.
func truncateError(err error) string {
	const limit = 200
	msg := err.Error()
	if len(msg) > limit {
		return msg[:limit] + "..."
	}
	return msg
}

// paramString formata um parâmetro para substituição textual em URLs.
func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// substituteParams troca os marcadores $params.chave pelo valor textual.
// Chaves maiores são substituídas primeiro para que "user" não corrompa
// "user_id". Com escapeStrings, valores string são escapados para JSON sem
// as aspas externas, próprio para marcadores já entre aspas no template.
func substituteParams(text string, params map[string]interface{}, escapeStrings bool) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		placeholder := "$params." + key
		if !strings.Contains(text, placeholder) {
			continue
		}

		var replacement string
		if s, ok := params[key].(string); ok {
			if escapeStrings {
				encoded, _ := json.Marshal(s)
				replacement = string(encoded[1 : len(encoded)-1])
			} else {
				replacement = s
			}
		} else {
			encoded, err := json.Marshal(params[key])
			if err != nil {
				continue
			}
			replacement = string(encoded)
		}
		text = strings.ReplaceAll(text, placeholder, replacement)
	}
	return text
}

// resultCount segue a contagem do interpretador: coleções contam seus
// elementos, qualquer outro valor conta como um.
func resultCount(v interface{}) int {
	switch t := v.(type) {
	case []interface{}:
		return len(t)
	case []map[string]interface{}:
		return len(t)
	case map[string]interface{}:
		return len(t)
	default:
		return 1
	}
}
