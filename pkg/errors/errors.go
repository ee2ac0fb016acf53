package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Tipos de erro comuns
var (
	ErrNotFound           = errors.New("recurso não encontrado")
	ErrBadRequest         = errors.New("requisição inválida")
	ErrUnauthorized       = errors.New("não autorizado")
	ErrForbidden          = errors.New("acesso negado")
	ErrInternalServer     = errors.New("erro interno do servidor")
	ErrServiceUnavailable = errors.New("serviço indisponível")
	ErrTimeout            = errors.New("tempo de espera excedido")
	ErrDuplicate          = errors.New("recurso já existe")
)

// Kind identifica a categoria de uma falha do motor de execução.
// Cada Kind tem um status HTTP fixo; o corpo da resposta nunca carrega
// a mensagem crua do erro interno, apenas o Kind e uma mensagem curada.
type Kind string

const (
	KindRouteNotFound      Kind = "ROUTE_NOT_FOUND"
	KindRouteDisabled      Kind = "ROUTE_DISABLED"
	KindVersionNotFound    Kind = "VERSION_NOT_FOUND"
	KindNoVersionDefined   Kind = "NO_VERSION_DEFINED"
	KindValidationError    Kind = "VALIDATION_ERROR"
	KindDangerousSQL       Kind = "DANGEROUS_SQL_DETECTED"
	KindMultipleStatements Kind = "MULTIPLE_STATEMENTS_DETECTED"
	KindUnsupportedLogic   Kind = "UNSUPPORTED_LOGIC_TYPE"
	KindExecutionError     Kind = "EXECUTION_ERROR"
	KindTimeout            Kind = "TIMEOUT"
	KindConfigurationError Kind = "CONFIGURATION_ERROR"
)

// kindStatus mapeia cada Kind para o status HTTP correspondente.
var kindStatus = map[Kind]int{
	KindRouteNotFound:      http.StatusNotFound,
	KindRouteDisabled:      http.StatusServiceUnavailable,
	KindVersionNotFound:    http.StatusNotFound,
	KindNoVersionDefined:   http.StatusInternalServerError,
	KindValidationError:    http.StatusBadRequest,
	KindDangerousSQL:       http.StatusBadRequest,
	KindMultipleStatements: http.StatusBadRequest,
	KindUnsupportedLogic:   http.StatusInternalServerError,
	KindExecutionError:     http.StatusInternalServerError,
	KindTimeout:            http.StatusGatewayTimeout,
	KindConfigurationError: http.StatusInternalServerError,
}

// Status retorna o status HTTP do Kind (500 para kinds desconhecidos).
func (k Kind) Status() int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// APIError representa um erro da API com informações adicionais
type APIError struct {
	Code        int         `json:"-"`
	Kind        Kind        `json:"type,omitempty"`
	Message     string      `json:"message"`
	Field       string      `json:"field,omitempty"`
	Details     interface{} `json:"details,omitempty"`
	OriginalErr error       `json:"-"`
}

// Error implementa a interface error
func (e *APIError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
	}
	return e.Message
}

// Unwrap permite usar errors.Is e errors.As
func (e *APIError) Unwrap() error {
	return e.OriginalErr
}

// New cria um novo APIError
func New(code int, message string, err error) *APIError {
	return &APIError{
		Code:        code,
		Message:     message,
		OriginalErr: err,
	}
}

// NewKind cria um APIError tipado com o status derivado do Kind.
// O erro original fica disponível via Unwrap para logging, mas nunca
// aparece no corpo da resposta.
func NewKind(kind Kind, message string, err error) *APIError {
	return &APIError{
		Code:        kind.Status(),
		Kind:        kind,
		Message:     message,
		OriginalErr: err,
	}
}

// WithDetails adiciona detalhes ao erro
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

// WithField marca o erro como escopado a um campo da requisição.
func (e *APIError) WithField(field string) *APIError {
	e.Field = field
	return e
}

// KindOf extrai o Kind de um erro; retorna EXECUTION_ERROR se o erro
// não for um APIError tipado.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		return apiErr.Kind
	}
	return KindExecutionError
}

// AsAPIError converte qualquer erro em APIError. Erros não tipados viram
// EXECUTION_ERROR genérico sem vazar a mensagem interna.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewKind(KindExecutionError, "erro interno na execução", err)
}

// NotFound cria um erro 404
func NotFound(resource string, err error) *APIError {
	message := fmt.Sprintf("%s não encontrado", resource)
	return New(http.StatusNotFound, message, err)
}

// BadRequest cria um erro 400
func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, message, err)
}

// Unauthorized cria um erro 401
func Unauthorized(message string, err error) *APIError {
	if message == "" {
		message = "Autenticação necessária"
	}
	return New(http.StatusUnauthorized, message, err)
}

// Forbidden cria um erro 403
func Forbidden(message string, err error) *APIError {
	if message == "" {
		message = "Acesso negado"
	}
	return New(http.StatusForbidden, message, err)
}

// InternalServer cria um erro 500
func InternalServer(message string, err error) *APIError {
	if message == "" {
		message = "Erro interno do servidor"
	}
	return New(http.StatusInternalServerError, message, err)
}
