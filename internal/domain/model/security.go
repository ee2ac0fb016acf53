package model

// RiskLevel classifica a severidade agregada de uma análise de SQL.
// A ordem importa: o risco geral de uma consulta é o máximo entre as
// violações encontradas, e somente RiskSafe autoriza execução.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskSafe:     "safe",
	RiskLow:      "low",
	RiskMedium:   "medium",
	RiskHigh:     "high",
	RiskCritical: "critical",
}

func (r RiskLevel) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializa o nível como o nome legível.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// ParseRiskLevel converte o nome legível de volta para o nível. Nomes
// desconhecidos retornam RiskSafe e ok=false.
func ParseRiskLevel(name string) (RiskLevel, bool) {
	for level, n := range riskNames {
		if n == name {
			return level, true
		}
	}
	return RiskSafe, false
}

// Categorias de violação detectadas pelo analisador.
const (
	ViolationInjection    = "SQL_INJECTION"
	ViolationDDL          = "DDL_KEYWORD"
	ViolationDML          = "NON_SELECT_DML"
	ViolationSensitive    = "SENSITIVE_DATA"
	ViolationSystemTable  = "SYSTEM_TABLE"
	ViolationIntent       = "DESTRUCTIVE_INTENT"
	ViolationMultiStmt    = "MULTIPLE_STATEMENTS"
)

// SecurityViolation descreve um padrão perigoso encontrado em uma consulta.
// É um valor efêmero: calculado por análise, nunca persistido.
type SecurityViolation struct {
	Category    string    `json:"category"`
	Risk        RiskLevel `json:"risk"`
	Description string    `json:"description"`
	Pattern     string    `json:"pattern,omitempty"`
}

// AnalysisReport agrega o resultado de uma análise de segurança.
type AnalysisReport struct {
	Risk             RiskLevel           `json:"risk_level"`
	Violations       []SecurityViolation `json:"violations,omitempty"`
	ExecutionAllowed bool                `json:"execution_allowed"`
	SanitizedQuery   string              `json:"sanitized_query,omitempty"`
}
