package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// TestTenant represents a registered tenant with its own schema
type TestTenant struct {
	ID         int64
	Name       string
	ClientCode string
	SchemaName string
}

// TenantManager creates and drops tenant schemas for tests. It works on a
// plain connection: setup must not depend on the code under test.
type TenantManager struct {
	db      *sqlx.DB
	mu      sync.Mutex
	created []*TestTenant
}

var (
	tenantSeq     atomic.Int64
	nonIdentifier = regexp.MustCompile(`[^a-z0-9_]+`)
)

// NewTenantManager creates a new tenant manager
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{db: db}
}

// Bootstrap creates the tenant registry in the default schema.
func (tm *TenantManager) Bootstrap(ctx context.Context) error {
	ddl, err := database.RegistryDDL(tenant.DefaultSchema)
	if err != nil {
		return err
	}
	if _, err := tm.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create tenant registry: %w", err)
	}
	return nil
}

// UniqueSchemaName derives a schema name from name that no other test uses.
func UniqueSchemaName(name string) string {
	base := nonIdentifier.ReplaceAllString(strings.ToLower(name), "_")
	base = strings.Trim(base, "_")
	if len(base) > 40 {
		base = base[:40]
	}
	return fmt.Sprintf("t_%s_%d", base, tenantSeq.Add(1))
}

// CreateTenant creates a schema with the canonical tables and registers it
// under a client code equal to the schema name.
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	schema := UniqueSchemaName(name)
	return tm.CreateTenantWithCode(ctx, name, schema, schema)
}

// CreateTenantWithCode is CreateTenant with explicit identifiers.
func (tm *TenantManager) CreateTenantWithCode(ctx context.Context, name, clientCode, schema string) (*TestTenant, error) {
	stmts, err := database.RenderTenantDDL(schema)
	if err != nil {
		return nil, err
	}

	tx, err := tm.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables in %s: %w", schema, err)
		}
	}

	t := &TestTenant{Name: name, ClientCode: clientCode, SchemaName: schema}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO public.tenants (name, client_code, schema_name) VALUES ($1, $2, $3) RETURNING id`,
		name, clientCode, schema,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant %s: %w", clientCode, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	tm.mu.Lock()
	tm.created = append(tm.created, t)
	tm.mu.Unlock()

	return t, nil
}

// DropTenant drops the tenant schema and its registry row
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	if _, err := tm.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(t.SchemaName)+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", t.SchemaName, err)
	}
	if _, err := tm.db.ExecContext(ctx, `DELETE FROM public.tenants WHERE schema_name = $1`, t.SchemaName); err != nil {
		return fmt.Errorf("failed to unregister tenant %s: %w", t.ClientCode, err)
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	for i, c := range tm.created {
		if c == t {
			tm.created = append(tm.created[:i], tm.created[i+1:]...)
			break
		}
	}
	return nil
}

// Cleanup drops all tenants created by this manager
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	remaining := append([]*TestTenant(nil), tm.created...)
	tm.mu.Unlock()

	var lastErr error
	for _, t := range remaining {
		if err := tm.DropTenant(ctx, t); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SchemaExists reports whether schema is present on the server.
func (tm *TenantManager) SchemaExists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := tm.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema)
	return exists, err
}

// WithTestTenant returns a context resolved to the test tenant, the way the
// auth middleware does for a verified token.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.SchemaName, t.ClientCode)
}
