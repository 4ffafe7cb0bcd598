package service

import (
	"context"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/user/domain"
	"github.com/protocolo/protocolo-backend/internal/user/repository"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// UserService handles tenant user management
type UserService struct {
	repo   *repository.UserRepository
	logger *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(repo *repository.UserRepository, log *logger.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: log,
	}
}

// List lists the users of the tenant
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// Create creates a user in the tenant carried by ctx
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" {
		return nil, errors.Validation(map[string]string{"login": "required"})
	}
	// The validator counts runes; bcrypt only accepts 72 bytes.
	if len(req.Password) > maxPasswordBytes {
		return nil, errors.Validation(map[string]string{"password": "must be at most 72 bytes"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user := &domain.User{
		Login:        login,
		PasswordHash: string(hashedPassword),
		Nome:         strings.TrimSpace(req.Nome),
		Role:         req.Role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return nil, errors.Conflict("login already in use").WithDetails(map[string]string{"login": "duplicate"})
		}
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("login", user.Login).
		Str("created_by", actor.LoginOr(ctx, "system")).
		Msg("user created")

	return user, nil
}
