package repository

import (
	"context"

	"github.com/protocolo/protocolo-backend/internal/user/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
)

// UserRepository handles user persistence in the schema carried by ctx
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// List lists users ordered by login
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := make([]*domain.User, 0)
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).SelectContext(ctx, &users,
			`SELECT id, login, password_hash, nome, role, created_at FROM usuarios ORDER BY login`)
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts u. A duplicate login surfaces as a Conflict.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		err := r.db.Executor(ctx).QueryRowxContext(ctx,
			`INSERT INTO usuarios (login, password_hash, nome, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			u.Login, u.PasswordHash, u.Nome, u.Role,
		).Scan(&u.ID, &u.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}
