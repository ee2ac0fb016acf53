package model

import "time"

// Papéis do plano administrativo.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User representa um usuário do plano administrativo. O plano dinâmico
// (/api/*) não tem usuários próprios; rotas com auth_required validam o
// mesmo token JWT emitido aqui.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
}

// IsAdmin informa se o usuário pode mutar definições de rota.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserEntity é a representação de banco de dados de um usuário
type UserEntity struct {
	ID        string    `gorm:"primaryKey;size:50"`
	Username  string    `gorm:"uniqueIndex;not null;size:50"`
	Password  string    `gorm:"not null"`
	Email     string    `gorm:"uniqueIndex;size:100"`
	Role      string    `gorm:"default:viewer;size:20"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName define o nome da tabela
func (UserEntity) TableName() string {
	return "admin_users"
}
