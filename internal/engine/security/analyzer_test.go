package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/internal/engine/security"
	"github.com/lfardo/api-engine-go/internal/testutils"
	"github.com/lfardo/api-engine-go/pkg/config"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

func newAnalyzer(t *testing.T, cfg config.SecurityConfig) *security.Analyzer {
	t.Helper()
	return security.NewAnalyzer(cfg, testutils.TestLogger(t))
}

func categories(report model.AnalysisReport) map[string]bool {
	out := make(map[string]bool, len(report.Violations))
	for _, v := range report.Violations {
		out[v.Category] = true
	}
	return out
}

func TestAnalyzer_SafeQuery(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{DefaultLimit: 100})

	report := analyzer.Analyze("SELECT id, name FROM users WHERE id = :id", "")

	assert.Equal(t, model.RiskSafe, report.Risk)
	assert.True(t, report.ExecutionAllowed)
	assert.Empty(t, report.Violations)
	// Sanitization appends the configured ceiling when no LIMIT is present.
	assert.Equal(t, "SELECT id, name FROM users WHERE id = :id LIMIT 100", report.SanitizedQuery)
}

func TestAnalyzer_InjectionPatterns(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{})

	t.Run("Tautology", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM users WHERE name = 'x' OR 1=1", "")
		assert.Equal(t, model.RiskCritical, report.Risk)
		assert.False(t, report.ExecutionAllowed)
		assert.True(t, categories(report)[model.ViolationInjection])
		assert.Empty(t, report.SanitizedQuery)
	})

	t.Run("UnionSelect", func(t *testing.T) {
		report := analyzer.Analyze("SELECT name FROM users UNION SELECT secret FROM vault", "")
		assert.Equal(t, model.RiskCritical, report.Risk)
		assert.False(t, report.ExecutionAllowed)
	})

	t.Run("StackedStatements", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM t; DROP TABLE t", "")
		assert.GreaterOrEqual(t, int(report.Risk), int(model.RiskHigh))
		assert.False(t, report.ExecutionAllowed)
		cats := categories(report)
		assert.True(t, cats[model.ViolationInjection] || cats[model.ViolationDDL])
	})

	t.Run("CommentObfuscation", func(t *testing.T) {
		// The normalized copy restores the keyword split by a comment.
		report := analyzer.Analyze("SELECT a FROM t UNION/**/SELECT b FROM u", "")
		assert.Equal(t, model.RiskCritical, report.Risk)
		assert.True(t, categories(report)[model.ViolationInjection])
	})

	t.Run("HexLiteral", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM t WHERE k = 0x4141414141414141", "")
		assert.GreaterOrEqual(t, int(report.Risk), int(model.RiskHigh))
	})
}

func TestAnalyzer_StructuralPasses(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{})

	t.Run("WriteDML", func(t *testing.T) {
		report := analyzer.Analyze("UPDATE users SET active = 0 WHERE id = 1", "")
		assert.Equal(t, model.RiskMedium, report.Risk)
		assert.False(t, report.ExecutionAllowed)
		assert.True(t, categories(report)[model.ViolationDML])
	})

	t.Run("SensitiveColumn", func(t *testing.T) {
		report := analyzer.Analyze("SELECT password FROM users", "")
		assert.Equal(t, model.RiskMedium, report.Risk)
		assert.True(t, categories(report)[model.ViolationSensitive])
	})

	t.Run("SystemCatalog", func(t *testing.T) {
		report := analyzer.Analyze("SELECT table_name FROM information_schema.tables", "")
		assert.Equal(t, model.RiskHigh, report.Risk)
		assert.True(t, categories(report)[model.ViolationSystemTable])
	})

	t.Run("ConfiguredSensitiveTable", func(t *testing.T) {
		custom := newAnalyzer(t, config.SecurityConfig{SensitiveTables: []string{"payroll"}})
		report := custom.Analyze("SELECT * FROM payroll", "")
		assert.Equal(t, model.RiskMedium, report.Risk)
		assert.True(t, categories(report)[model.ViolationSensitive])
	})
}

func TestAnalyzer_DestructiveIntent(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{})

	// The question is checked before any SQL exists.
	report := analyzer.Analyze("", "delete all users from the system")

	assert.Equal(t, model.RiskCritical, report.Risk)
	assert.False(t, report.ExecutionAllowed)
	assert.True(t, categories(report)[model.ViolationIntent])
}

func TestAnalyzer_MaxRiskThreshold(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{MaxRiskLevel: "medium"})

	report := analyzer.Analyze("SELECT password FROM users", "")

	assert.Equal(t, model.RiskMedium, report.Risk)
	assert.True(t, report.ExecutionAllowed, "medium threshold admits medium risk")
	assert.Equal(t, "SELECT password FROM users LIMIT 1000", report.SanitizedQuery,
		"allowed queries carry a sanitized form regardless of risk tier")
}

func TestAnalyzer_LimitClamp(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{DefaultLimit: 100})

	t.Run("ClampsOversizedLimit", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM logs LIMIT 5000", "")
		require.True(t, report.ExecutionAllowed)
		assert.Equal(t, "SELECT * FROM logs LIMIT 100", report.SanitizedQuery)
	})

	t.Run("KeepsSmallerLimit", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM logs LIMIT 50", "")
		assert.Equal(t, "SELECT * FROM logs LIMIT 50", report.SanitizedQuery)
	})

	t.Run("StripsTrailingSeparatorAndComment", func(t *testing.T) {
		report := analyzer.Analyze("SELECT * FROM logs LIMIT 10; -- tail", "")
		require.True(t, report.ExecutionAllowed)
		assert.Equal(t, "SELECT * FROM logs LIMIT 10", report.SanitizedQuery)
	})
}

func TestAnalyzer_ValidateStatement(t *testing.T) {
	analyzer := newAnalyzer(t, config.SecurityConfig{})

	t.Run("AllowsPlainSelect", func(t *testing.T) {
		assert.NoError(t, analyzer.ValidateStatement("SELECT * FROM users WHERE id = :id"))
	})

	t.Run("RejectsDangerousKeyword", func(t *testing.T) {
		err := analyzer.ValidateStatement("DROP TABLE users")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindDangerousSQL, apierrors.KindOf(err))
	})

	t.Run("KeywordMatchIsSubstring", func(t *testing.T) {
		// Deliberately conservative: CREATED_AT contains CREATE.
		err := analyzer.ValidateStatement("SELECT created_at FROM t")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindDangerousSQL, apierrors.KindOf(err))
	})

	t.Run("RejectsMultipleStatements", func(t *testing.T) {
		err := analyzer.ValidateStatement("SELECT 1; SELECT 2;")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindMultipleStatements, apierrors.KindOf(err))
	})

	t.Run("SingleTrailingSeparatorIsFine", func(t *testing.T) {
		assert.NoError(t, analyzer.ValidateStatement("SELECT 1;"))
	})

	t.Run("SemicolonsInsideCommentsIgnored", func(t *testing.T) {
		assert.NoError(t, analyzer.ValidateStatement("SELECT 1; -- trailing; comment; here"))
	})

	t.Run("OperatorExtraKeyword", func(t *testing.T) {
		custom := newAnalyzer(t, config.SecurityConfig{ExtraKeywords: []string{"shutdown"}})
		err := custom.ValidateStatement("SELECT shutdown FROM ops")
		require.Error(t, err)
		assert.Equal(t, apierrors.KindDangerousSQL, apierrors.KindOf(err))
	})
}
