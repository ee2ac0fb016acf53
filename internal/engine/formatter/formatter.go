package formatter

import (
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/lfardo/api-engine-go/internal/domain/model"
)

const resultFieldPrefix = "$result."

// Format mapeia a saída do executor no template de resposta declarado pela
// versão e escolhe o status HTTP. Sem template, a resposta usa o envelope
// padrão {"success": true, "data": ..., "count": ...} com status 200.
//
// Com template, cada valor string é resolvido textualmente:
//
//	"$result"        → resultado completo
//	"$result_count"  → contagem
//	"$result.a.b"    → caminho dentro de um resultado estruturado
//
// Qualquer outro valor (string ou não) passa adiante sem alteração. O
// status vem da tabela da versão: Success quando a contagem é positiva,
// NotFound quando zero, 200 na ausência de ambos.
func Format(result interface{}, count int, template map[string]interface{}, codes model.StatusCodes) (map[string]interface{}, int) {
	if len(template) == 0 {
		return map[string]interface{}{
			"success": true,
			"data":    result,
			"count":   count,
		}, 200
	}

	formatted := make(map[string]interface{}, len(template))
	for key, value := range template {
		str, isString := value.(string)
		if !isString {
			formatted[key] = value
			continue
		}
		switch {
		case str == "$result":
			formatted[key] = result
		case str == "$result_count":
			formatted[key] = count
		case strings.HasPrefix(str, resultFieldPrefix):
			formatted[key] = resolveField(result, strings.TrimPrefix(str, resultFieldPrefix))
		default:
			formatted[key] = str
		}
	}

	return formatted, codes.Pick(count)
}

// resolveField navega o caminho dentro do resultado. Caminhos inválidos ou
// sem correspondência resolvem para nil, nunca para erro: o template é
// declarativo e um campo ausente é uma resposta vazia, não uma falha.
func resolveField(result interface{}, path string) interface{} {
	if path == "" || result == nil {
		return nil
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil
	}
	return expr.First(result)
}
