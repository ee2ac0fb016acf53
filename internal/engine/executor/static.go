package executor

import "encoding/json"

// executeStatic devolve o corpo da versão como resposta literal, com os
// marcadores $params.chave substituídos. Se o texto resultante for JSON
// válido, a resposta é a estrutura decodificada; senão, o próprio texto.
// A contagem de um STATIC_RESPONSE é sempre um, independente da forma.
func executeStatic(body string, params map[string]interface{}) (*Result, error) {
	rendered := substituteParams(body, params, false)

	var parsed interface{}
	if err := json.Unmarshal([]byte(rendered), &parsed); err == nil {
		return &Result{Value: parsed, Count: 1}, nil
	}
	return &Result{Value: rendered, Count: 1}, nil
}
