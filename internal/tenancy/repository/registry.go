package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

const tenantColumns = `id, name, client_code, schema_name, is_active, created_at`

// RegistryRepository reads and writes the tenant registry. The table lives in
// the default schema and every statement names it explicitly, so it resolves
// the same way whatever search path the connection is on.
type RegistryRepository struct {
	db    *database.DB
	table string
}

// NewRegistryRepository creates a new registry repository
func NewRegistryRepository(db *database.DB) *RegistryRepository {
	return &RegistryRepository{
		db:    db,
		table: pq.QuoteIdentifier(db.DefaultSchema()) + ".tenants",
	}
}

// Bootstrap creates the registry table if it does not exist.
func (r *RegistryRepository) Bootstrap(ctx context.Context) error {
	ddl, err := database.RegistryDDL(r.db.DefaultSchema())
	if err != nil {
		return err
	}
	if _, err := r.db.Executor(ctx).ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create tenant registry: %w", err)
	}
	return nil
}

func (r *RegistryRepository) getBy(ctx context.Context, column string, value interface{}, suffix string) (*domain.Tenant, error) {
	var t domain.Tenant
	query := `SELECT ` + tenantColumns + ` FROM ` + r.table + ` WHERE ` + column + ` = $1` + suffix
	err := r.db.Executor(ctx).GetContext(ctx, &t, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByClientCode gets a tenant by its business code
func (r *RegistryRepository) GetByClientCode(ctx context.Context, code string) (*domain.Tenant, error) {
	return r.getBy(ctx, "client_code", code, "")
}

// GetBySchemaName gets a tenant by its schema
func (r *RegistryRepository) GetBySchemaName(ctx context.Context, schema string) (*domain.Tenant, error) {
	return r.getBy(ctx, "schema_name", schema, "")
}

// GetByID gets a tenant by ID
func (r *RegistryRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	return r.getBy(ctx, "id", id, "")
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *RegistryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Tenant, error) {
	return r.getBy(ctx, "id", id, " FOR UPDATE")
}

// List returns every tenant in registration order.
func (r *RegistryRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	tenants := []*domain.Tenant{}
	err := r.db.Executor(ctx).SelectContext(ctx, &tenants,
		`SELECT `+tenantColumns+` FROM `+r.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// ListActive returns active tenants in registration order.
func (r *RegistryRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	tenants := []*domain.Tenant{}
	err := r.db.Executor(ctx).SelectContext(ctx, &tenants,
		`SELECT `+tenantColumns+` FROM `+r.table+` WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Lock serializes registry writers for the rest of the transaction. Readers
// are not blocked.
func (r *RegistryRepository) Lock(ctx context.Context) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `LOCK TABLE `+r.table+` IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

// Insert registers t and fills its generated fields.
func (r *RegistryRepository) Insert(ctx context.Context, t *domain.Tenant) error {
	err := r.db.Executor(ctx).QueryRowxContext(ctx,
		`INSERT INTO `+r.table+` (name, client_code, schema_name) VALUES ($1, $2, $3)
		 RETURNING id, is_active, created_at`,
		t.Name, t.ClientCode, t.SchemaName,
	).Scan(&t.ID, &t.IsActive, &t.CreatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// Delete removes the registry row of a tenant
func (r *RegistryRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("tenant")
	}
	return nil
}

// SetActive flips is_active and returns the updated row.
func (r *RegistryRepository) SetActive(ctx context.Context, id int64, active bool) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.Executor(ctx).GetContext(ctx, &t,
		`UPDATE `+r.table+` SET is_active = $2 WHERE id = $1 RETURNING `+tenantColumns, id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
