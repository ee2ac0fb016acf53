package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfardo/api-engine-go/internal/app/auth"
	"github.com/lfardo/api-engine-go/internal/domain/model"
)

// AuthMiddleware protege o plano administrativo. As rotas dinâmicas em
// /api não passam por aqui: a exigência de token é decidida por rota,
// dentro do handler dinâmico.
type AuthMiddleware struct {
	authService *auth.AuthService
	logger      *zap.Logger
}

// NewAuthMiddleware cria uma nova instância do middleware de autenticação
func NewAuthMiddleware(authService *auth.AuthService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate verifica se o usuário está autenticado
func (m *AuthMiddleware) Authenticate(c *gin.Context) {
	if isPublicRoute(c.Request.URL.Path) {
		c.Next()
		return
	}

	// Sem serviço de autenticação o plano administrativo fica trancado,
	// nunca aberto
	if m.authService == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "autenticação não configurada"})
		return
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header não fornecido"})
		return
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "formato inválido do token"})
		return
	}

	user, err := m.authService.ValidateToken(c.Request.Context(), tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token inválido ou expirado"})
		return
	}

	// Guarda o usuário para os handlers montarem o ator da auditoria
	c.Set("user", user)
	c.Next()
}

// AuthenticateAdmin verifica se o usuário é um administrador
func (m *AuthMiddleware) AuthenticateAdmin(c *gin.Context) {
	m.Authenticate(c)

	if c.IsAborted() {
		return
	}

	userValue, exists := c.Get("user")
	if !exists {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "falha ao obter informações do usuário"})
		return
	}

	user, ok := userValue.(*model.User)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "falha ao processar informações do usuário"})
		return
	}

	if !m.authService.IsAdmin(user) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "acesso negado: permissão de administrador necessária"})
		return
	}

	c.Next()
}

// isPublicRoute determina se uma rota do plano administrativo é pública
func isPublicRoute(path string) bool {
	publicPaths := []string{
		"/health",
		"/auth/login",
		"/metrics",
	}

	for _, publicPath := range publicPaths {
		if strings.HasPrefix(path, publicPath) {
			return true
		}
	}

	return false
}
