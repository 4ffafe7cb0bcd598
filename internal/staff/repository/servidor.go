package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/staff/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

const servidorColumns = `id, matricula, nome, lotacao, cargo, unidade_de_exercicio, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ServidorRepository handles staff directory persistence
type ServidorRepository struct {
	db *database.DB
}

// NewServidorRepository creates a new staff directory repository
func NewServidorRepository(db *database.DB) *ServidorRepository {
	return &ServidorRepository{db: db}
}

// GetByMatricula gets a directory entry by registration number
func (r *ServidorRepository) GetByMatricula(ctx context.Context, matricula string) (*domain.Servidor, error) {
	var s domain.Servidor
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &s,
			`SELECT `+servidorColumns+` FROM servidores WHERE matricula = $1`, matricula)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("servidor")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SearchByNome returns up to limit entries whose name contains fragment,
// case-insensitively, ordered by name.
func (r *ServidorRepository) SearchByNome(ctx context.Context, fragment string, limit int) ([]*domain.Servidor, error) {
	servidores := make([]*domain.Servidor, 0)
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).SelectContext(ctx, &servidores,
			`SELECT `+servidorColumns+` FROM servidores WHERE nome ILIKE $1 ORDER BY nome LIMIT $2`,
			"%"+likeEscaper.Replace(fragment)+"%", limit)
	})
	if err != nil {
		return nil, err
	}
	return servidores, nil
}

// Upsert inserts s or refreshes the entry with the same matricula.
func (r *ServidorRepository) Upsert(ctx context.Context, s *domain.Servidor) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO servidores (matricula, nome, lotacao, cargo, unidade_de_exercicio)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (matricula) DO UPDATE SET
				nome = EXCLUDED.nome,
				lotacao = EXCLUDED.lotacao,
				cargo = EXCLUDED.cargo,
				unidade_de_exercicio = EXCLUDED.unidade_de_exercicio,
				updated_at = NOW()
			RETURNING id, updated_at
		`
		return r.db.Executor(ctx).QueryRowxContext(ctx, query,
			s.Matricula, s.Nome, s.Lotacao, s.Cargo, s.UnidadeDeExercicio,
		).Scan(&s.ID, &s.UpdatedAt)
	})
}
