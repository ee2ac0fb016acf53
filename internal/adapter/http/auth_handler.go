package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/internal/app/auth"
)

// AuthHandler expõe o login e o cadastro de usuários do plano
// administrativo. As rotas dinâmicas usam os mesmos tokens, mas a
// exigência é configurada por rota.
type AuthHandler struct {
	authService *auth.AuthService
	logger      *zap.Logger
}

// NewAuthHandler cria o handler de autenticação
func NewAuthHandler(authService *auth.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login autentica um usuário e devolve o token JWT
func (h *AuthHandler) Login(c *gin.Context) {
	if h.authService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "autenticação não configurada"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "credenciais inválidas"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Role     string `json:"role"`
}

// RegisterUser cadastra um usuário. A rota é restrita a administradores.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	if h.authService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "autenticação não configurada"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "dados inválidos: " + err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email, req.Role)
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "nome de usuário já existe"})
			return
		}
		h.logger.Warn("falha ao cadastrar usuário",
			zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}
