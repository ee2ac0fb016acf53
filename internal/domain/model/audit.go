package model

import "time"

// AuditAction enumera as operações registráveis no log de auditoria.
type AuditAction string

const (
	AuditCreate        AuditAction = "CREATE"
	AuditUpdate        AuditAction = "UPDATE"
	AuditVersionCreate AuditAction = "VERSION_CREATE"
	AuditActivate      AuditAction = "ACTIVATE"
	AuditDeactivate    AuditAction = "DEACTIVATE"
	AuditDelete        AuditAction = "DELETE"
	AuditRestore       AuditAction = "RESTORE"
	AuditRollback      AuditAction = "ROLLBACK"
	AuditSetCurrent    AuditAction = "SET_CURRENT"
)

// Tipos de alvo de auditoria.
const (
	AuditTargetRoute   = "API_ROUTE"
	AuditTargetVersion = "API_VERSION"
)

// AuditEntry registra uma mutação sobre uma rota ou versão. As linhas são
// imutáveis e nunca removidas; cada operação mutadora grava exatamente uma
// entrada, na mesma transação da mutação que descreve.
type AuditEntry struct {
	ID          string                 `json:"id"`
	TargetType  string                 `json:"target_type"`
	TargetID    string                 `json:"target_id"`
	Action      AuditAction            `json:"action"`
	OldValue    map[string]interface{} `json:"old_value,omitempty"`
	NewValue    map[string]interface{} `json:"new_value,omitempty"`
	Description string                 `json:"description,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	ActorIP     string                 `json:"actor_ip,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// AuditEntity é a representação de banco de dados de uma entrada de auditoria
type AuditEntity struct {
	ID            string    `gorm:"primaryKey;size:50"`
	TargetType    string    `gorm:"index:idx_audit_target;not null;size:50"`
	TargetID      string    `gorm:"index:idx_audit_target;not null;size:50"`
	Action        string    `gorm:"index;not null;size:50"`
	OldValueJSON  string    `gorm:"column:old_value;type:json"`
	NewValueJSON  string    `gorm:"column:new_value;type:json"`
	Description   string    `gorm:"type:text"`
	Actor         string    `gorm:"index;size:100"`
	ActorIP       string    `gorm:"size:45"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

// TableName define o nome da tabela
func (AuditEntity) TableName() string {
	return "api_audit_log"
}
