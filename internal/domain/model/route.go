package model

import (
	"errors"
	"strings"
	"time"
)

// Route é a representação de domínio de uma rota dinâmica.
// A identidade de uma rota é o par (path, method) e nunca muda depois da
// criação. Metadados (nome, tags, auth, origens, rate limit) e os flags
// IsActive/IsDeleted podem mudar, e cada mudança gera uma entrada de
// auditoria. A lógica executável não mora aqui: mora nas versões.
type Route struct {
	ID             string    `json:"id"`
	Path           string    `json:"path"`
	Method         string    `json:"method"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsDeleted      bool      `json:"is_deleted"`
	AuthRequired   bool      `json:"auth_required"`
	AllowedOrigins []string  `json:"allowed_origins,omitempty"`
	RateLimit      int       `json:"rate_limit"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	DeletedAt      time.Time `json:"deleted_at,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
}

// Validate verifica se a rota é válida antes da criação
func (r *Route) Validate() error {
	if r.Path == "" {
		return errors.New("path é obrigatório")
	}
	if r.Method == "" {
		return errors.New("method é obrigatório")
	}
	switch strings.ToUpper(r.Method) {
	case "GET", "POST", "PUT", "DELETE", "PATCH":
	default:
		return errors.New("método HTTP não suportado: " + r.Method)
	}
	if r.Name == "" {
		return errors.New("name é obrigatório")
	}
	return nil
}

// NormalizedPath remove a barra inicial para armazenamento canônico.
// A rota "users/list" e a requisição "/api/users/list" se referem ao
// mesmo caminho.
func (r *Route) NormalizedPath() string {
	return strings.TrimPrefix(r.Path, "/")
}

// IsOriginAllowed verifica se a origem está na lista de origens permitidas.
// Lista vazia permite qualquer origem.
func (r *Route) IsOriginAllowed(origin string) bool {
	if len(r.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range r.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// RouteEntity é a representação de banco de dados de uma rota
type RouteEntity struct {
	ID                 string    `gorm:"primaryKey;size:50"`
	Path               string    `gorm:"index:idx_route_path_method;not null;size:255"`
	Method             string    `gorm:"index:idx_route_path_method;not null;size:10"`
	Name               string    `gorm:"not null;size:100"`
	Description        string    `gorm:"type:text"`
	TagsJSON           string    `gorm:"column:tags;type:json"`
	IsActive           bool      `gorm:"default:true"`
	IsDeleted          bool      `gorm:"default:false;index"`
	AuthRequired       bool      `gorm:"default:false"`
	AllowedOriginsJSON string    `gorm:"column:allowed_origins;type:json"`
	RateLimit          int       `gorm:"default:0"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
	DeletedAt          time.Time
	CreatedBy          string `gorm:"size:100"`
}

// TableName define o nome da tabela
func (RouteEntity) TableName() string {
	return "api_routes"
}
