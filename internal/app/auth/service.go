package auth

import (
	"context"
	"errors"
	"time"

	"github.com/lfardo/api-engine-go/internal/domain/model"
	"github.com/lfardo/api-engine-go/pkg/security"
	"go.uber.org/zap"
)

// UserRepository define o acesso a dados de usuário do plano administrativo
type UserRepository interface {
	GetUserByCredentials(ctx context.Context, username, password string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, username, password, email, role string) (*model.User, error)
}

// AuthService gerencia operações de autenticação do plano administrativo
type AuthService struct {
	keyManager *security.KeyManager
	users      UserRepository
	tokenTTL   time.Duration
	logger     *zap.Logger
}

// NewAuthService cria um novo serviço de autenticação
func NewAuthService(keyManager *security.KeyManager, users UserRepository, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		keyManager: keyManager,
		users:      users,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// Login autentica um usuário e gera um token JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByCredentials(ctx, username, password)
	if err != nil {
		s.logger.Warn("falha na autenticação", zap.String("username", username), zap.Error(err))
		return "", errors.New("credenciais inválidas")
	}

	token, err := s.keyManager.GenerateToken(user.ID, user.Username, user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("falha ao gerar token", zap.String("user_id", user.ID), zap.Error(err))
		return "", err
	}

	s.logger.Info("login bem-sucedido", zap.String("user_id", user.ID))
	return token, nil
}

// ValidateToken valida um token JWT e retorna o usuário correspondente
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.keyManager.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		s.logger.Error("usuário do token não encontrado", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, errors.New("usuário inválido")
	}

	return user, nil
}

// Register cria um usuário do plano administrativo. A senha chega em
// claro e é passada por bcrypt no repositório.
func (s *AuthService) Register(ctx context.Context, username, password, email, role string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("usuário e senha são obrigatórios")
	}
	if len(password) < 8 {
		return nil, errors.New("senha deve ter ao menos 8 caracteres")
	}
	if role == "" {
		role = "user"
	}

	user, err := s.users.CreateUser(ctx, username, password, email, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("usuário criado", zap.String("username", username), zap.String("role", role))
	return user, nil
}

// IsAdmin verifica se um usuário tem permissão administrativa
func (s *AuthService) IsAdmin(user *model.User) bool {
	return user != nil && user.Role == "admin"
}
