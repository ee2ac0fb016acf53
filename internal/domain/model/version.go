package model

import (
	"errors"
	"time"
)

// Version é um snapshot imutável da definição executável de uma rota.
// Versões nunca são atualizadas nem removidas: toda mudança cria uma nova
// linha com número sequencial, e no máximo uma versão por rota carrega o
// flag IsCurrent, o único campo que o armazenamento pode alterar in-place.
type Version struct {
	ID               string                 `json:"id"`
	RouteID          string                 `json:"route_id"`
	Number           int                    `json:"version"`
	IsCurrent        bool                   `json:"is_current"`
	RequestSchema    map[string]FieldSpec   `json:"request_spec,omitempty"`
	LogicType        LogicType              `json:"logic_type"`
	LogicBody        string                 `json:"logic_body"`
	LogicConfig      LogicConfig            `json:"logic_config,omitempty"`
	ResponseTemplate map[string]interface{} `json:"response_spec,omitempty"`
	StatusCodes      StatusCodes            `json:"status_codes,omitempty"`
	SampleParams     map[string]interface{} `json:"sample_params,omitempty"`
	ChangeNote       string                 `json:"change_note,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	CreatedBy        string                 `json:"created_by,omitempty"`
}

// Validate verifica os campos mínimos de uma versão nova.
func (v *Version) Validate() error {
	if v.RouteID == "" {
		return errors.New("route_id é obrigatório")
	}
	if !v.LogicType.Valid() {
		return errors.New("logic_type não suportado: " + string(v.LogicType))
	}
	if v.LogicBody == "" {
		return errors.New("logic_body é obrigatório")
	}
	return nil
}

// VersionEntity é a representação de banco de dados de uma versão
type VersionEntity struct {
	ID                   string    `gorm:"primaryKey;size:50"`
	RouteID              string    `gorm:"uniqueIndex:idx_version_route_no;not null;size:50;index"`
	Number               int       `gorm:"uniqueIndex:idx_version_route_no;not null;column:version_no"`
	IsCurrent            bool      `gorm:"default:false;index"`
	RequestSchemaJSON    string    `gorm:"column:request_spec;type:json"`
	LogicType            string    `gorm:"not null;size:30"`
	LogicBody            string    `gorm:"type:text;not null"`
	LogicConfigJSON      string    `gorm:"column:logic_config;type:json"`
	ResponseTemplateJSON string    `gorm:"column:response_spec;type:json"`
	StatusCodesJSON      string    `gorm:"column:status_codes;type:json"`
	SampleParamsJSON     string    `gorm:"column:sample_params;type:json"`
	ChangeNote           string    `gorm:"type:text"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	CreatedBy            string    `gorm:"size:100"`
}

// TableName define o nome da tabela
func (VersionEntity) TableName() string {
	return "api_versions"
}
