package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
)

// Validate aplica o schema de requisição de uma versão sobre os parâmetros
// brutos e devolve o conjunto validado e coercido. É uma função pura: não
// toca banco, não loga, não altera o mapa de entrada.
//
// Regras, nesta ordem por campo declarado:
//   - ausente e obrigatório → erro escopado ao campo;
//   - ausente com default → substitui pelo default;
//   - ausente, opcional e sem default → omitido;
//   - presente → coerção para o tipo declarado, depois as restrições:
//     tamanho de string, padrão, faixa numérica e enum. A primeira
//     violada interrompe.
//
// Campos não declarados no schema passam adiante sem validação: o schema
// é aditivo, não uma allow-list.
func Validate(params map[string]interface{}, schema map[string]model.FieldSpec) (map[string]interface{}, error) {
	if len(schema) == 0 {
		return params, nil
	}

	validated := make(map[string]interface{}, len(params))
	for name, value := range params {
		if _, declared := schema[name]; !declared {
			validated[name] = value
		}
	}

	// Ordem estável de avaliação para que o mesmo erro seja reportado
	// em chamadas repetidas com a mesma entrada.
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := schema[name]
		value, present := params[name]
		if !present || value == nil {
			if spec.Required {
				return nil, fieldError(name, "campo obrigatório")
			}
			if spec.Default == nil {
				continue
			}
			value = spec.Default
		}

		coerced, err := coerce(spec.Type, value)
		if err != nil {
			return nil, fieldError(name, fmt.Sprintf("deve ser do tipo %s", typeName(spec.Type)))
		}

		if err := checkConstraints(name, coerced, spec); err != nil {
			return nil, err
		}
		validated[name] = coerced
	}

	return validated, nil
}

// typeName normaliza o tipo declarado; tipos desconhecidos seguem o
// conversor padrão de string.
func typeName(t string) string {
	switch t {
	case "int", "float", "bool", "array", "object":
		return t
	}
	return "string"
}

func coerce(fieldType string, value interface{}) (interface{}, error) {
	switch fieldType {
	case "int":
		return coerceInt(value)
	case "float":
		return coerceFloat(value)
	case "bool":
		return coerceBool(value), nil
	case "array":
		if list, ok := value.([]interface{}); ok {
			return list, nil
		}
		return nil, fmt.Errorf("valor %T não é array", value)
	case "object":
		if obj, ok := value.(map[string]interface{}); ok {
			return obj, nil
		}
		return nil, fmt.Errorf("valor %T não é object", value)
	default:
		return coerceString(value), nil
	}
}

func coerceInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("valor %T não é int", value)
	}
}

func coerceFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("valor %T não é float", value)
	}
}

// coerceBool nunca falha: valores fora do conjunto verdadeiro viram false.
func coerceBool(value interface{}) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	switch strings.ToLower(coerceString(value)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func coerceString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func checkConstraints(name string, value interface{}, spec model.FieldSpec) error {
	if typeName(spec.Type) == "string" {
		if s, ok := value.(string); ok {
			if spec.MinLength != nil && len(s) < *spec.MinLength {
				return fieldError(name, fmt.Sprintf("tamanho mínimo de %d caracteres", *spec.MinLength))
			}
			if spec.MaxLength != nil && len(s) > *spec.MaxLength {
				return fieldError(name, fmt.Sprintf("tamanho máximo de %d caracteres", *spec.MaxLength))
			}
			if spec.Pattern != "" {
				ok, err := matchPrefix(spec.Pattern, s)
				if err != nil {
					return fieldError(name, "padrão de validação inválido: "+spec.Pattern)
				}
				if !ok {
					return fieldError(name, "valor não corresponde ao padrão "+spec.Pattern)
				}
			}
		}
	}

	if n, isNumber := asFloat(value); isNumber && (spec.Type == "int" || spec.Type == "float") {
		if spec.MinValue != nil && n < *spec.MinValue {
			return fieldError(name, fmt.Sprintf("valor mínimo é %s", formatNumber(*spec.MinValue)))
		}
		if spec.MaxValue != nil && n > *spec.MaxValue {
			return fieldError(name, fmt.Sprintf("valor máximo é %s", formatNumber(*spec.MaxValue)))
		}
	}

	if len(spec.Enum) > 0 && !enumContains(spec.Enum, value) {
		return fieldError(name, fmt.Sprintf("valor fora do conjunto permitido: %v", spec.Enum))
	}
	return nil
}

// matchPrefix casa o padrão no início do valor, não em qualquer posição.
func matchPrefix(pattern, value string) (bool, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

// enumContains compara com tolerância numérica: enums vindos de JSON
// carregam números como float64, enquanto a coerção pode produzir int.
func enumContains(enum []interface{}, value interface{}) bool {
	for _, candidate := range enum {
		if enumEqual(candidate, value) {
			return true
		}
	}
	return false
}

func enumEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fieldError(field, message string) error {
	return apierrors.NewKind(apierrors.KindValidationError, message, nil).WithField(field)
}
