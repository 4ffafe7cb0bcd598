package repository

import (
	"context"
	"database/sql"

	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

// Credential is the subset of a usuarios row needed to authenticate.
type Credential struct {
	ID           int64  `db:"id"`
	Login        string `db:"login"`
	PasswordHash string `db:"password_hash"`
	Nome         string `db:"nome"`
	Role         string `db:"role"`
}

// CredentialRepository reads login credentials from the schema carried by ctx.
type CredentialRepository struct {
	db *database.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByLogin returns the credential for login, or NotFound.
func (r *CredentialRepository) GetByLogin(ctx context.Context, login string) (*Credential, error) {
	var c Credential
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &c,
			`SELECT id, login, password_hash, nome, role FROM usuarios WHERE login = $1`, login)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
