package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apierrors "github.com/lfardo/api-engine-go/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// versionSchemaJSON é o meta-schema dos documentos de versão. A validação
// acontece no plano administrativo, na criação: um documento que passa
// aqui ainda pode falhar em tempo de execução (SQL inválido, por
// exemplo), mas erros de forma nunca chegam ao banco.
const versionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["logic_type", "logic_body"],
  "properties": {
    "logic_type": {
      "type": "string",
      "enum": ["SQL", "MULTI_SQL", "PIPELINE", "BIGQUERY", "OPENSEARCH", "PYTHON_EXPR", "HTTP_CALL", "STATIC_RESPONSE"]
    },
    "logic_body": {"type": "string", "minLength": 1},
    "request_spec": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "enum": ["string", "int", "float", "bool", "array", "object"]},
          "required": {"type": "boolean"},
          "default": {},
          "min_length": {"type": "integer", "minimum": 0},
          "max_length": {"type": "integer", "minimum": 0},
          "pattern": {"type": "string"},
          "min_value": {"type": "number"},
          "max_value": {"type": "number"},
          "enum": {"type": "array", "minItems": 1}
        },
        "additionalProperties": false
      }
    },
    "logic_config": {
      "type": "object",
      "properties": {
        "timeout": {"type": "integer", "minimum": 1},
        "max_rows": {"type": "integer", "minimum": 1},
        "retries": {"type": "integer", "minimum": 0},
        "index": {"type": "string"},
        "host": {"type": "string"},
        "user": {"type": "string"},
        "password": {"type": "string"}
      },
      "additionalProperties": false
    },
    "response_spec": {"type": "object"},
    "status_codes": {
      "type": "object",
      "properties": {
        "success": {"type": "integer", "minimum": 100, "maximum": 599},
        "not_found": {"type": "integer", "minimum": 100, "maximum": 599}
      },
      "additionalProperties": false
    },
    "sample_params": {"type": "object"},
    "change_note": {"type": "string"}
  }
}`

func compileVersionSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("version.json", strings.NewReader(versionSchemaJSON)); err != nil {
		return nil, fmt.Errorf("registrar meta-schema de versão: %w", err)
	}
	return compiler.Compile("version.json")
}

// validateVersionDocument passa o documento pelo meta-schema. O documento
// chega como estrutura de domínio; a ponte por JSON reaproveita as tags
// e normaliza os tipos para os que o validador de schema espera.
func (s *Service) validateVersionDocument(doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serializar documento de versão: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("normalizar documento de versão: %w", err)
	}

	if err := s.versionSchema.Validate(generic); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return apierrors.BadRequest(
				fmt.Sprintf("documento de versão inválido: %s", flattenSchemaError(validationErr)), err)
		}
		return apierrors.BadRequest("documento de versão inválido", err)
	}
	return nil
}

// flattenSchemaError desce até a causa mais específica para uma mensagem
// útil, em vez do resumo genérico da raiz.
func flattenSchemaError(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	location := strings.TrimPrefix(err.InstanceLocation, "/")
	location = strings.ReplaceAll(location, "/", ".")
	if location == "" {
		return err.Message
	}
	return location + ": " + err.Message
}
