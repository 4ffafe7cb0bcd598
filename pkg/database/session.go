package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	apperrors "github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Executor returns the transaction bound to ctx, or the pool when there is none.
// Repositories run every statement through it.
func (db *DB) Executor(ctx context.Context) Querier {
	if tx := db.getTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// WithTx runs fn inside a transaction, joining the one already bound to ctx.
func (db *DB) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// WithTenantSchema executes fn as one unit of work against the tenant schema
// carried by ctx. It fails closed when ctx has no tenant: tenant tables are
// never reachable through the default schema.
//
// Usage in repositories:
//
//	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
//	    return r.db.Executor(ctx).GetContext(ctx, &p, "SELECT * FROM protocolos WHERE id = $1", id)
//	})
func (db *DB) WithTenantSchema(ctx context.Context, fn func(context.Context) error) error {
	schema, err := tenant.Schema(ctx)
	if err != nil {
		return apperrors.Forbidden("tenant context required")
	}
	if err := tenant.ValidateSchemaName(schema); err != nil {
		var idErr *tenant.IdentifierError
		if errors.As(err, &idErr) {
			return apperrors.UnsafeIdentifier(idErr.Field, idErr.Reason)
		}
		return err
	}
	return db.WithTx(ctx, fn)
}

// InSchema temporarily switches to schema for the duration of fn. It pins one
// pooled connection, runs fn in a transaction on it (rolled back when fn fails)
// and, on every exit path, resets the connection to the default schema before
// releasing it. A connection that cannot be reset is discarded.
func (db *DB) InSchema(ctx context.Context, schema string, fn func(context.Context) error) error {
	if err := tenant.ValidateSchemaName(schema); err != nil {
		return err
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	scoped := tenant.WithSchema(ctx, schema)
	runErr := func() error {
		tx, err := conn.BeginTxx(scoped, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(context.WithValue(scoped, txKey{}, tx)); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logger.Error().Err(rbErr).Str("schema", schema).Msg("failed to rollback transaction")
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}()

	db.resetConn(ctx, conn, schema)
	return runErr
}

// resetConn puts a pinned connection back on the default schema. Returning
// driver.ErrBadConn from Raw makes database/sql close the connection instead
// of handing it back to the pool.
func (db *DB) resetConn(ctx context.Context, conn *sqlx.Conn, schema string) {
	err := conn.Raw(func(dc any) error {
		sc, ok := dc.(*schemaConn)
		if !ok {
			return nil
		}
		if err := sc.reset(context.WithoutCancel(ctx)); err != nil {
			db.logger.Error().Err(err).Str("schema", schema).Msg("discarding connection after failed schema reset")
			if db.resetFailures != nil {
				db.resetFailures.Inc()
			}
			return driver.ErrBadConn
		}
		return nil
	})
	if err != nil && !errors.Is(err, driver.ErrBadConn) {
		db.logger.Error().Err(err).Str("schema", schema).Msg("failed to access pinned connection")
	}
}
