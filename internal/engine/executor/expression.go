package executor

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// expressionDenyList rejeita corpos que tentam alcançar superfícies de
// importação, arquivo ou processo. O interpretador já não tem nenhuma
// dessas capacidades; a lista só transforma a tentativa numa recusa clara
// em vez de um erro de compilação confuso.
var expressionDenyList = []string{
	"__", "import", "eval", "exec", "compile", "open(",
	"os.", "sys.", "subprocess", "shutil", "pathlib",
}

// executeExpression avalia o corpo como uma expressão única sobre o mapa
// de parâmetros. O interpretador compila para uma AST fechada: só os
// builtins puros da linguagem de expressão e a variável params existem no
// ambiente.
func (e *Executor) executeExpression(body string, params map[string]interface{}) (*Result, error) {
	lowered := strings.ToLower(body)
	for _, token := range expressionDenyList {
		if strings.Contains(lowered, token) {
			return nil, apierrors.NewKind(apierrors.KindExecutionError,
				"expressão contém token proibido: "+token, nil)
		}
	}

	program, err := e.compileExpression(body)
	if err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"expressão inválida: "+truncateError(err), err)
	}

	value, err := expr.Run(program, map[string]interface{}{"params": params})
	if err != nil {
		return nil, apierrors.NewKind(apierrors.KindExecutionError,
			"erro ao avaliar expressão: "+truncateError(err), err)
	}

	return &Result{Value: value, Count: resultCount(value)}, nil
}

// compileExpression mantém um cache de programas compilados. O ambiente é
// sempre o mesmo, então o corpo da expressão basta como chave.
func (e *Executor) compileExpression(body string) (*vm.Program, error) {
	e.exprMu.RLock()
	if program, ok := e.exprCache[body]; ok {
		e.exprMu.RUnlock()
		return program, nil
	}
	e.exprMu.RUnlock()

	program, err := expr.Compile(body, expr.Env(map[string]interface{}{
		"params": map[string]interface{}{},
	}))
	if err != nil {
		return nil, err
	}

	e.exprMu.Lock()
	if existing, ok := e.exprCache[body]; ok {
		e.exprMu.Unlock()
		return existing, nil
	}
	e.exprCache[body] = program
	e.exprMu.Unlock()

	return program, nil
}
