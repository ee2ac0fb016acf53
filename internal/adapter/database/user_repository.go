package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lfardo/api-engine-go/internal/domain/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("usuário não encontrado")
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	ErrUserExists         = errors.New("usuário já existe")
)

type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetUserByCredentials(ctx context.Context, username, password string) (*model.User, error) {
	var user model.UserEntity

	result := r.db.WithContext(ctx).Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("falha ao buscar usuário",
			zap.String("username", username),
			zap.Error(result.Error))
		return nil, result.Error
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &model.User{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
	}, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.UserEntity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &model.User{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
	}, nil
}

// CreateUser cria um usuário com a senha já passada por bcrypt
func (r *UserRepository) CreateUser(ctx context.Context, username, password, email, role string) (*model.User, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.UserEntity{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	entity := model.UserEntity{
		ID:       uuid.NewString(),
		Username: username,
		Password: string(hash),
		Email:    email,
		Role:     role,
	}

	if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
		r.logger.Error("falha ao criar usuário",
			zap.String("username", username),
			zap.Error(err))
		return nil, err
	}

	return &model.User{
		ID:       entity.ID,
		Username: entity.Username,
		Role:     entity.Role,
		Email:    entity.Email,
	}, nil
}
