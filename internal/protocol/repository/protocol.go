package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

const protocolColumns = `id, numero, nome, matricula, endereco, municipio, bairro, cep, telefone,
	cpf, rg, cargo, lotacao, unidade_exercicio, tipo_requerimento, requer_ao,
	data_solicitacao, observacoes, status, responsavel, visto, created_at`

// ProtocolRepository handles protocol persistence.
// Every method runs against the tenant schema carried by ctx.
type ProtocolRepository struct {
	db *database.DB
}

// NewProtocolRepository creates a new protocol repository
func NewProtocolRepository(db *database.DB) *ProtocolRepository {
	return &ProtocolRepository{db: db}
}

// Create inserts p and fills its generated fields.
func (r *ProtocolRepository) Create(ctx context.Context, p *domain.Protocol) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO protocolos (
				numero, nome, matricula, endereco, municipio, bairro, cep, telefone,
				cpf, rg, cargo, lotacao, unidade_exercicio, tipo_requerimento, requer_ao,
				data_solicitacao, observacoes, status, responsavel
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
			) RETURNING id, visto, created_at
		`
		err := r.db.Executor(ctx).QueryRowxContext(ctx, query,
			p.Numero, p.Nome, p.Matricula, p.Endereco, p.Municipio, p.Bairro, p.CEP, p.Telefone,
			p.CPF, p.RG, p.Cargo, p.Lotacao, p.UnidadeExercicio, p.TipoRequerimento, p.RequerAo,
			p.DataSolicitacao, p.Observacoes, p.Status, p.Responsavel,
		).Scan(&p.ID, &p.Visto, &p.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// GetByID gets a protocol by ID
func (r *ProtocolRepository) GetByID(ctx context.Context, id int64) (*domain.Protocol, error) {
	var p domain.Protocol
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &p,
			`SELECT `+protocolColumns+` FROM protocolos WHERE id = $1`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("protocol")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByNumero gets a protocol by its number within the current schema.
func (r *ProtocolRepository) GetByNumero(ctx context.Context, numero string) (*domain.Protocol, error) {
	var p domain.Protocol
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &p,
			`SELECT `+protocolColumns+` FROM protocolos WHERE numero = $1`, numero)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("protocol")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns one page of protocols, newest first, and the total count.
func (r *ProtocolRepository) List(ctx context.Context, params domain.ListParams) ([]*domain.Protocol, int64, error) {
	var (
		protocols []*domain.Protocol
		total     int64
	)

	where := ""
	args := []interface{}{}
	if params.Responsavel != nil {
		where = " WHERE responsavel = $1"
		args = append(args, *params.Responsavel)
	}

	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		q := r.db.Executor(ctx)
		if err := q.GetContext(ctx, &total, `SELECT COUNT(*) FROM protocolos`+where, args...); err != nil {
			return err
		}

		pageArgs := append(args, params.PerPage, params.Offset())
		query := `SELECT ` + protocolColumns + ` FROM protocolos` + where +
			` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		return q.SelectContext(ctx, &protocols, query, pageArgs...)
	})
	if err != nil {
		return nil, 0, err
	}
	return protocols, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchFilter renders the WHERE clause of params with named parameters.
func searchFilter(params domain.SearchParams) (string, map[string]interface{}) {
	var conds []string
	args := map[string]interface{}{}

	if params.Numero != "" {
		conds = append(conds, "numero ILIKE :numero")
		args["numero"] = "%" + likeEscaper.Replace(params.Numero) + "%"
	}
	if params.Nome != "" {
		conds = append(conds, "nome ILIKE :nome")
		args["nome"] = "%" + likeEscaper.Replace(params.Nome) + "%"
	}
	if params.Status != "" {
		conds = append(conds, "status = :status")
		args["status"] = params.Status
	}
	if params.Tipo != "" {
		conds = append(conds, "tipo_requerimento = :tipo")
		args["tipo"] = params.Tipo
	}
	if params.Lotacao != "" {
		conds = append(conds, "lotacao = :lotacao")
		args["lotacao"] = params.Lotacao
	}
	if params.DataInicio != nil {
		conds = append(conds, "data_solicitacao >= :data_inicio")
		args["data_inicio"] = params.DataInicio.String()
	}
	if params.DataFim != nil {
		conds = append(conds, "data_solicitacao <= :data_fim")
		args["data_fim"] = params.DataFim.String()
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Search returns one page of the protocols matching params, most recent
// request date first, and the total number of matches.
func (r *ProtocolRepository) Search(ctx context.Context, params domain.SearchParams) ([]*domain.Protocol, int64, error) {
	var (
		protocols []*domain.Protocol
		total     int64
	)

	where, args := searchFilter(params)
	countQuery, countArgs, err := sqlx.Named(`SELECT COUNT(*) FROM protocolos`+where, args)
	if err != nil {
		return nil, 0, err
	}

	args["limit"] = params.PerPage
	args["offset"] = params.Offset()
	pageQuery, pageArgs, err := sqlx.Named(`SELECT `+protocolColumns+` FROM protocolos`+where+
		` ORDER BY data_solicitacao DESC, id DESC LIMIT :limit OFFSET :offset`, args)
	if err != nil {
		return nil, 0, err
	}

	err = r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		q := r.db.Executor(ctx)
		if err := q.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
			return err
		}
		return q.SelectContext(ctx, &protocols, r.db.Rebind(pageQuery), pageArgs...)
	})
	if err != nil {
		return nil, 0, err
	}
	return protocols, total, nil
}

// Update writes the descriptive fields of p.
func (r *ProtocolRepository) Update(ctx context.Context, p *domain.Protocol) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		query := `
			UPDATE protocolos SET
				numero = $2, nome = $3, matricula = $4, endereco = $5, municipio = $6,
				bairro = $7, cep = $8, telefone = $9, cpf = $10, rg = $11, cargo = $12,
				lotacao = $13, unidade_exercicio = $14, tipo_requerimento = $15,
				requer_ao = $16, data_solicitacao = $17, observacoes = $18
			WHERE id = $1
		`
		result, err := r.db.Executor(ctx).ExecContext(ctx, query,
			p.ID, p.Numero, p.Nome, p.Matricula, p.Endereco, p.Municipio,
			p.Bairro, p.CEP, p.Telefone, p.CPF, p.RG, p.Cargo,
			p.Lotacao, p.UnidadeExercicio, p.TipoRequerimento,
			p.RequerAo, p.DataSolicitacao, p.Observacoes,
		)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		if err != nil {
			return err
		}
		return requireAffected(result, "protocol")
	})
}

// Move sets status and responsible. A new responsible has not seen the protocol yet.
func (r *ProtocolRepository) Move(ctx context.Context, id int64, status string, responsavel *string) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		query := `
			UPDATE protocolos SET
				status = $2,
				visto = CASE WHEN responsavel IS DISTINCT FROM $3 THEN FALSE ELSE visto END,
				responsavel = $3
			WHERE id = $1
		`
		result, err := r.db.Executor(ctx).ExecContext(ctx, query, id, status, responsavel)
		if err != nil {
			return err
		}
		return requireAffected(result, "protocol")
	})
}

// Delete removes a protocol; history and attachments cascade.
func (r *ProtocolRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM protocolos WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(result, "protocol")
	})
}

// LastNumero returns the highest sequence used in year, or 0.
func (r *ProtocolRepository) LastNumero(ctx context.Context, year int) (int, error) {
	var last sql.NullInt64
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &last, `
			SELECT MAX(CAST(SPLIT_PART(numero, '/', 1) AS INTEGER))
			FROM protocolos
			WHERE numero LIKE $1
		`, "%/"+strconv.Itoa(year))
	})
	if err != nil {
		return 0, err
	}
	return int(last.Int64), nil
}

// Stats computes the dashboard counters in one transaction.
func (r *ProtocolRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		PorStatus: []domain.StatusCount{},
		TopTipos:  []domain.TypeCount{},
	}
	finished := pq.Array(domain.FinishedStatuses)

	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		q := r.db.Executor(ctx)

		if err := q.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM protocolos`); err != nil {
			return err
		}
		if err := q.GetContext(ctx, &stats.Finalizados,
			`SELECT COUNT(*) FROM protocolos WHERE status = ANY($1)`, finished); err != nil {
			return err
		}
		if err := q.GetContext(ctx, &stats.PendentesAntigos, `
			SELECT COUNT(*) FROM protocolos
			WHERE status <> ALL($1) AND data_solicitacao <= CURRENT_DATE - $2::int
		`, finished, domain.PendingAfterDays); err != nil {
			return err
		}
		if err := q.SelectContext(ctx, &stats.PorStatus, `
			SELECT status, COUNT(*) AS total FROM protocolos
			GROUP BY status ORDER BY total DESC, status
		`); err != nil {
			return err
		}
		return q.SelectContext(ctx, &stats.TopTipos, `
			SELECT tipo_requerimento, COUNT(*) AS total FROM protocolos
			WHERE tipo_requerimento IS NOT NULL AND tipo_requerimento <> ''
			GROUP BY tipo_requerimento ORDER BY total DESC, tipo_requerimento
			LIMIT 5
		`)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CountUnseen counts protocols assigned to responsavel that were not opened yet.
func (r *ProtocolRepository) CountUnseen(ctx context.Context, responsavel string) (int64, error) {
	var n int64
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &n,
			`SELECT COUNT(*) FROM protocolos WHERE responsavel = $1 AND visto = FALSE`, responsavel)
	})
	return n, err
}

// MarkSeen flags every protocol of responsavel as seen and returns how many changed.
func (r *ProtocolRepository) MarkSeen(ctx context.Context, responsavel string) (int64, error) {
	var n int64
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		result, err := r.db.Executor(ctx).ExecContext(ctx,
			`UPDATE protocolos SET visto = TRUE WHERE responsavel = $1 AND visto = FALSE`, responsavel)
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}

func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}
