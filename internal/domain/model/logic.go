package model

// LogicType identifica o interpretador usado para executar o corpo lógico
// de uma versão. O conjunto é fechado: o executor faz dispatch exaustivo
// sobre estes valores e rejeita qualquer outro.
type LogicType string

const (
	LogicSQL        LogicType = "SQL"
	LogicMultiSQL   LogicType = "MULTI_SQL"
	LogicPipeline   LogicType = "PIPELINE"
	LogicBigQuery   LogicType = "BIGQUERY"
	LogicOpenSearch LogicType = "OPENSEARCH"
	LogicExpression LogicType = "PYTHON_EXPR"
	LogicHTTPCall   LogicType = "HTTP_CALL"
	LogicStatic     LogicType = "STATIC_RESPONSE"
)

// Valid informa se o tipo pertence ao conjunto suportado.
func (t LogicType) Valid() bool {
	switch t {
	case LogicSQL, LogicMultiSQL, LogicPipeline, LogicBigQuery,
		LogicOpenSearch, LogicExpression, LogicHTTPCall, LogicStatic:
		return true
	}
	return false
}

// LogicTypes lista todos os tipos suportados, na ordem de documentação.
func LogicTypes() []LogicType {
	return []LogicType{
		LogicSQL, LogicMultiSQL, LogicPipeline, LogicBigQuery,
		LogicOpenSearch, LogicExpression, LogicHTTPCall, LogicStatic,
	}
}

// LogicConfig carrega opções de execução declaradas pela versão.
// Campos zerados usam os defaults do executor.
type LogicConfig struct {
	TimeoutSeconds int    `json:"timeout,omitempty"`
	MaxRows        int    `json:"max_rows,omitempty"`
	Retries        int    `json:"retries,omitempty"`
	Index          string `json:"index,omitempty"`
	Host           string `json:"host,omitempty"`
	User           string `json:"user,omitempty"`
	Password       string `json:"password,omitempty"`
}

// FieldSpec descreve a regra de validação de um campo de entrada.
type FieldSpec struct {
	Type      string        `json:"type"`
	Required  bool          `json:"required,omitempty"`
	Default   interface{}   `json:"default,omitempty"`
	MinLength *int          `json:"min_length,omitempty"`
	MaxLength *int          `json:"max_length,omitempty"`
	Pattern   string        `json:"pattern,omitempty"`
	MinValue  *float64      `json:"min_value,omitempty"`
	MaxValue  *float64      `json:"max_value,omitempty"`
	Enum      []interface{} `json:"enum,omitempty"`
}

// StatusCodes escolhe o status HTTP da resposta formatada: Success quando
// o resultado tem itens, NotFound quando está vazio. Zero vale 200.
type StatusCodes struct {
	Success  int `json:"success,omitempty"`
	NotFound int `json:"not_found,omitempty"`
}

// Pick resolve o status para a contagem informada.
func (s StatusCodes) Pick(count int) int {
	if count > 0 {
		if s.Success != 0 {
			return s.Success
		}
		return 200
	}
	if s.NotFound != 0 {
		return s.NotFound
	}
	return 200
}
