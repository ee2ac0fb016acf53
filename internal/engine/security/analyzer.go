package security

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// dangerousKeywords são os tokens bloqueados em qualquer corpo SQL
// executável. A checagem é por substring sobre a consulta em maiúsculas:
// um classificador deliberadamente conservador, não um parser de SQL.
var dangerousKeywords = []string{
	"DROP", "TRUNCATE", "ALTER", "CREATE", "GRANT", "REVOKE",
	"EXEC", "EXECUTE", "XP_", "SP_", "INTO OUTFILE", "INTO DUMPFILE",
	"LOAD_FILE", "BENCHMARK", "SLEEP",
}

// intentKeywords sinalizam intenção destrutiva na pergunta em linguagem
// natural que originou uma consulta gerada.
var intentKeywords = []string{
	"delete all", "delete every", "drop table", "drop database",
	"truncate", "remove all", "wipe", "erase all", "destroy",
	"apagar tudo", "excluir tudo", "remover tudo", "limpar tabela",
}

type checkPattern struct {
	re          *regexp.Regexp
	category    string
	risk        model.RiskLevel
	description string
}

// Padrões de injeção clássicos. Aplicados tanto à consulta crua quanto à
// cópia sem comentários, para derrotar ofuscação por comentário.
var injectionPatterns = []checkPattern{
	{regexp.MustCompile(`(?i)\b(or|and)\s+'?\d+'?\s*=\s*'?\d+'?`), model.ViolationInjection, model.RiskCritical, "tautologia de comparação constante"},
	{regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`), model.ViolationInjection, model.RiskCritical, "UNION SELECT"},
	{regexp.MustCompile(`(?i);\s*(select|insert|update|delete|drop|create|alter|truncate)\b`), model.ViolationInjection, model.RiskCritical, "instruções empilhadas"},
	{regexp.MustCompile(`(?i)\b(load_file|benchmark|sleep)\s*\(`), model.ViolationInjection, model.RiskCritical, "primitiva de arquivo ou temporização"},
	{regexp.MustCompile(`(?i)\binto\s+(outfile|dumpfile)\b`), model.ViolationInjection, model.RiskCritical, "escrita de arquivo pelo servidor"},
	{regexp.MustCompile(`(?i)\b0x[0-9a-f]{8,}`), model.ViolationInjection, model.RiskHigh, "literal hexadecimal longo"},
}

var structuralPatterns = []checkPattern{
	{regexp.MustCompile(`(?i)\b(drop|truncate|alter|create|grant|revoke)\b`), model.ViolationDDL, model.RiskHigh, "palavra-chave DDL"},
	{regexp.MustCompile(`(?i)\b(insert|update|delete|replace|merge)\b`), model.ViolationDML, model.RiskMedium, "DML de escrita"},
	{regexp.MustCompile(`(?i)\b(information_schema|performance_schema|pg_catalog|pg_shadow|sqlite_master)\b`), model.ViolationSystemTable, model.RiskHigh, "catálogo de sistema"},
	{regexp.MustCompile(`(?i)\b(mysql|sys)\.\w+`), model.ViolationSystemTable, model.RiskHigh, "tabela de sistema"},
}

var sensitiveNames = regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|token|api_key|apikey|credit_card|card_number|cvv|ssn|social_security|salary|iban|account_number)\b`)

var (
	lineCommentRe  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	limitClauseRe  = regexp.MustCompile(`(?i)\blimit\s+(\d+)`)
)

// Analyzer classifica uma string SQL em um nível de risco e um conjunto de
// violações. É usado em dois pontos: na autoria, para barrar lógica perigosa
// antes de persistir, e na execução, para barrar consultas geradas por LLM.
type Analyzer struct {
	maxRisk       model.RiskLevel
	defaultLimit  int
	extraKeywords []string
	extraTables   *regexp.Regexp
	logger        *zap.Logger
}

// NewAnalyzer monta o analisador a partir da configuração de segurança.
// Palavras e tabelas extras do operador entram nas mesmas passadas que as
// listas embutidas.
func NewAnalyzer(cfg config.SecurityConfig, logger *zap.Logger) *Analyzer {
	maxRisk, ok := model.ParseRiskLevel(strings.ToLower(cfg.MaxRiskLevel))
	if !ok {
		maxRisk = model.RiskSafe
	}

	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 1000
	}

	extras := make([]string, 0, len(cfg.ExtraKeywords))
	for _, kw := range cfg.ExtraKeywords {
		if kw = strings.ToUpper(strings.TrimSpace(kw)); kw != "" {
			extras = append(extras, kw)
		}
	}

	var extraTables *regexp.Regexp
	if len(cfg.SensitiveTables) > 0 {
		quoted := make([]string, 0, len(cfg.SensitiveTables))
		for _, name := range cfg.SensitiveTables {
			if name = strings.TrimSpace(name); name != "" {
				quoted = append(quoted, regexp.QuoteMeta(name))
			}
		}
		if len(quoted) > 0 {
			extraTables = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
		}
	}

	return &Analyzer{
		maxRisk:       maxRisk,
		defaultLimit:  limit,
		extraKeywords: extras,
		extraTables:   extraTables,
		logger:        logger,
	}
}

// Analyze avalia a consulta e, quando presente, a pergunta em linguagem
// natural que a originou. Qualquer um dos argumentos pode ser vazio: a
// pré-checagem de intenção usa Analyze("", pergunta) antes de gerar SQL.
// O risco geral é o máximo entre as violações; a consulta sanitizada só é
// preenchida quando a política permite a execução.
func (a *Analyzer) Analyze(query, question string) model.AnalysisReport {
	var violations []model.SecurityViolation
	seen := make(map[string]bool)

	if trimmed := strings.TrimSpace(query); trimmed != "" {
		// A cópia normalizada derrota ofuscação por comentário e espaço.
		normalized := whitespaceRe.ReplaceAllString(stripComments(trimmed), " ")
		for _, variant := range []string{trimmed, normalized} {
			a.scanPatterns(variant, seen, &violations)
		}
		if strings.Count(stripComments(trimmed), ";") > 1 {
			addViolation(seen, &violations, model.SecurityViolation{
				Category:    model.ViolationMultiStmt,
				Risk:        model.RiskHigh,
				Description: "múltiplas instruções em uma única consulta",
			})
		}
	}

	if question != "" {
		lower := strings.ToLower(question)
		for _, kw := range intentKeywords {
			if strings.Contains(lower, kw) {
				addViolation(seen, &violations, model.SecurityViolation{
					Category:    model.ViolationIntent,
					Risk:        model.RiskCritical,
					Description: "pergunta com intenção destrutiva",
					Pattern:     kw,
				})
			}
		}
	}

	risk := model.RiskSafe
	for _, v := range violations {
		if v.Risk > risk {
			risk = v.Risk
		}
	}

	report := model.AnalysisReport{
		Risk:             risk,
		Violations:       violations,
		ExecutionAllowed: risk <= a.maxRisk,
	}
	if report.ExecutionAllowed && strings.TrimSpace(query) != "" {
		report.SanitizedQuery = a.sanitize(query)
	}

	if !report.ExecutionAllowed {
		a.logger.Warn("consulta reprovada pela análise de segurança",
			zap.String("risk", risk.String()),
			zap.Int("violations", len(violations)))
	}
	return report
}

func (a *Analyzer) scanPatterns(query string, seen map[string]bool, out *[]model.SecurityViolation) {
	for _, p := range injectionPatterns {
		if match := p.re.FindString(query); match != "" {
			addViolation(seen, out, model.SecurityViolation{
				Category:    p.category,
				Risk:        p.risk,
				Description: p.description,
				Pattern:     match,
			})
		}
	}
	for _, p := range structuralPatterns {
		if match := p.re.FindString(query); match != "" {
			addViolation(seen, out, model.SecurityViolation{
				Category:    p.category,
				Risk:        p.risk,
				Description: p.description,
				Pattern:     match,
			})
		}
	}
	if match := sensitiveNames.FindString(query); match != "" {
		addViolation(seen, out, model.SecurityViolation{
			Category:    model.ViolationSensitive,
			Risk:        model.RiskMedium,
			Description: "referência a dado sensível",
			Pattern:     match,
		})
	}
	if a.extraTables != nil {
		if match := a.extraTables.FindString(query); match != "" {
			addViolation(seen, out, model.SecurityViolation{
				Category:    model.ViolationSensitive,
				Risk:        model.RiskMedium,
				Description: "referência a tabela sensível configurada",
				Pattern:     match,
			})
		}
	}
}

// addViolation deduplica por categoria+descrição: a mesma passada roda
// sobre a consulta crua e a normalizada.
func addViolation(seen map[string]bool, out *[]model.SecurityViolation, v model.SecurityViolation) {
	key := v.Category + "|" + v.Description
	if seen[key] {
		return
	}
	seen[key] = true
	*out = append(*out, v)
}

// ValidateStatement é o portão por instrução do executor: bloqueia
// palavras-chave perigosas e mais de uma instrução por corpo. Consultas
// multi-passo devem usar MULTI_SQL.
func (a *Analyzer) ValidateStatement(query string) error {
	upper := strings.ToUpper(query)
	for _, keyword := range dangerousKeywords {
		if strings.Contains(upper, keyword) {
			return apierrors.NewKind(apierrors.KindDangerousSQL,
				fmt.Sprintf("palavra-chave '%s' não é permitida", keyword), nil)
		}
	}
	for _, keyword := range a.extraKeywords {
		if strings.Contains(upper, keyword) {
			return apierrors.NewKind(apierrors.KindDangerousSQL,
				fmt.Sprintf("palavra-chave '%s' não é permitida", keyword), nil)
		}
	}

	if strings.Count(stripComments(query), ";") > 1 {
		return apierrors.NewKind(apierrors.KindMultipleStatements,
			"múltiplas instruções não são permitidas; use o tipo MULTI_SQL", nil)
	}
	return nil
}

// sanitize remove comentários e o separador final, e força um LIMIT dentro
// do teto configurado. Chamado apenas para consultas classificadas como safe.
func (a *Analyzer) sanitize(query string) string {
	clean := strings.TrimSpace(stripComments(query))
	clean = strings.TrimSuffix(clean, ";")
	clean = strings.TrimSpace(clean)

	if !strings.HasPrefix(strings.ToUpper(clean), "SELECT") {
		return clean
	}

	if match := limitClauseRe.FindStringSubmatch(clean); match != nil {
		value, err := strconv.Atoi(match[1])
		if err == nil && value > a.defaultLimit {
			clean = limitClauseRe.ReplaceAllString(clean, fmt.Sprintf("LIMIT %d", a.defaultLimit))
		}
		return clean
	}
	return fmt.Sprintf("%s LIMIT %d", clean, a.defaultLimit)
}

// ClampLimit força um teto de LIMIT em uma consulta SELECT já
// sanitizada. O caminho de linguagem natural carrega um teto por chamada
// além do aplicado pelo sanitizador.
func ClampLimit(query string, ceiling int) string {
	if ceiling <= 0 {
		return query
	}
	clean := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(clean), "SELECT") {
		return clean
	}
	if match := limitClauseRe.FindStringSubmatch(clean); match != nil {
		value, err := strconv.Atoi(match[1])
		if err == nil && value > ceiling {
			return limitClauseRe.ReplaceAllString(clean, fmt.Sprintf("LIMIT %d", ceiling))
		}
		return clean
	}
	return fmt.Sprintf("%s LIMIT %d", clean, ceiling)
}

// stripComments troca comentários por espaço: remover por completo
// colaria tokens e deixaria "UNION/**/SELECT" passar pela normalização.
func stripComments(query string) string {
	clean := lineCommentRe.ReplaceAllString(query, " ")
	return blockCommentRe.ReplaceAllString(clean, " ")
}
