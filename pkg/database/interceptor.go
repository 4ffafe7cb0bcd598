package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// ErrSchemaReset is reported when a pinned connection could not be put back on
// the default schema. The connection is discarded instead of returned to the pool.
var ErrSchemaReset = errors.New("failed to reset search_path")

// SchemaConnector wraps a driver.Connector so that every statement executed
// on one of its connections is preceded by a SET search_path for the schema
// carried in the statement's context (or the default schema when there is none).
type SchemaConnector struct {
	base          driver.Connector
	defaultSchema string

	mu    sync.RWMutex
	cache map[string]string
}

// NewSchemaConnector wraps base. defaultSchema must pass the identifier allow-list.
func NewSchemaConnector(base driver.Connector, defaultSchema string) (*SchemaConnector, error) {
	if err := tenant.ValidateIdentifier(defaultSchema); err != nil {
		return nil, fmt.Errorf("invalid default schema: %w", err)
	}
	return &SchemaConnector{
		base:          base,
		defaultSchema: defaultSchema,
		cache:         make(map[string]string),
	}, nil
}

// DefaultSchema returns the schema used when a context carries no tenant.
func (c *SchemaConnector) DefaultSchema() string {
	return c.defaultSchema
}

func (c *SchemaConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &schemaConn{Conn: conn, connector: c}, nil
}

func (c *SchemaConnector) Driver() driver.Driver {
	return c.base.Driver()
}

// SearchPathStatement builds the SET statement for schema. Schema names cannot
// be bound as parameters, so the allow-list check is repeated here right before
// interpolation.
func (c *SchemaConnector) SearchPathStatement(schema string) (string, error) {
	c.mu.RLock()
	stmt, ok := c.cache[schema]
	c.mu.RUnlock()
	if ok {
		return stmt, nil
	}

	if err := tenant.ValidateIdentifier(schema); err != nil {
		return "", err
	}

	if schema == c.defaultSchema {
		stmt = fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schema))
	} else {
		stmt = fmt.Sprintf("SET search_path TO %s, %s", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(c.defaultSchema))
	}

	c.mu.Lock()
	c.cache[schema] = stmt
	c.mu.Unlock()
	return stmt, nil
}

type schemaConn struct {
	driver.Conn
	connector *SchemaConnector
	bad       bool
}

// apply points the session at the schema carried by ctx.
func (c *schemaConn) apply(ctx context.Context) error {
	if c.bad {
		return driver.ErrBadConn
	}
	stmt, err := c.connector.SearchPathStatement(tenant.SchemaOr(ctx, c.connector.defaultSchema))
	if err != nil {
		return err
	}
	return c.execRaw(ctx, stmt)
}

// reset puts the session back on the default schema. A failure marks the
// connection bad so the pool drops it.
func (c *schemaConn) reset(ctx context.Context) error {
	stmt, err := c.connector.SearchPathStatement(c.connector.defaultSchema)
	if err == nil {
		err = c.execRaw(ctx, stmt)
	}
	if err != nil {
		c.bad = true
		return fmt.Errorf("%w: %v", ErrSchemaReset, err)
	}
	return nil
}

func (c *schemaConn) execRaw(ctx context.Context, query string) error {
	if execer, ok := c.Conn.(driver.ExecerContext); ok {
		_, err := execer.ExecContext(ctx, query, nil)
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}

	stmt, err := c.prepare(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if ec, ok := stmt.(driver.StmtExecContext); ok {
		_, err = ec.ExecContext(ctx, nil)
		return err
	}
	_, err = stmt.Exec(nil) //nolint:staticcheck // fallback for drivers without StmtExecContext
	return err
}

func (c *schemaConn) prepare(ctx context.Context, query string) (driver.Stmt, error) {
	if pc, ok := c.Conn.(driver.ConnPrepareContext); ok {
		return pc.PrepareContext(ctx, query)
	}
	return c.Conn.Prepare(query)
}

func (c *schemaConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	if err := c.apply(ctx); err != nil {
		return nil, err
	}
	return execer.ExecContext(ctx, query, args)
}

func (c *schemaConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	if err := c.apply(ctx); err != nil {
		return nil, err
	}
	return queryer.QueryContext(ctx, query, args)
}

func (c *schemaConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &schemaStmt{Stmt: stmt, conn: c}, nil
}

func (c *schemaConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.bad {
		return nil, driver.ErrBadConn
	}
	if bt, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	return c.Conn.Begin() //nolint:staticcheck // fallback for drivers without ConnBeginTx
}

func (c *schemaConn) Ping(ctx context.Context) error {
	if c.bad {
		return driver.ErrBadConn
	}
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *schemaConn) CheckNamedValue(nv *driver.NamedValue) error {
	if checker, ok := c.Conn.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (c *schemaConn) ResetSession(ctx context.Context) error {
	if c.bad {
		return driver.ErrBadConn
	}
	if r, ok := c.Conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *schemaConn) IsValid() bool {
	if c.bad {
		return false
	}
	if v, ok := c.Conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

type schemaStmt struct {
	driver.Stmt
	conn *schemaConn
}

func (s *schemaStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.conn.apply(ctx); err != nil {
		return nil, err
	}
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		return ec.ExecContext(ctx, args)
	}
	values, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	return s.Stmt.Exec(values) //nolint:staticcheck // fallback for drivers without StmtExecContext
}

func (s *schemaStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := s.conn.apply(ctx); err != nil {
		return nil, err
	}
	if qc, ok := s.Stmt.(driver.StmtQueryContext); ok {
		return qc.QueryContext(ctx, args)
	}
	values, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	return s.Stmt.Query(values) //nolint:staticcheck // fallback for drivers without StmtQueryContext
}

func namedValues(args []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, errors.New("database: driver does not support named parameters")
		}
		values[i] = arg.Value
	}
	return values, nil
}
