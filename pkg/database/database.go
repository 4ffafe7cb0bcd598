package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// DB wraps sqlx.DB with additional functionality.
// Every connection of the pool goes through a SchemaConnector, so the schema
// a statement runs against is always the one carried by its context.
type DB struct {
	*sqlx.DB
	connector     *SchemaConnector
	logger        *logger.Logger
	resetFailures prometheus.Counter
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := NewWithDSN(dsn, cfg.DefaultSchema, log)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// NewWithDSN creates a new database connection with a DSN string
func NewWithDSN(dsn, defaultSchema string, log *logger.Logger) (*DB, error) {
	base, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}

	db, err := NewFromConnector(base, defaultSchema, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// NewFromConnector builds a DB on top of an arbitrary driver connector.
// Tests use it to put the schema interceptor in front of sqlmock.
func NewFromConnector(base driver.Connector, defaultSchema string, log *logger.Logger) (*DB, error) {
	if defaultSchema == "" {
		defaultSchema = tenant.DefaultSchema
	}
	if log == nil {
		log = logger.Nop()
	}

	connector, err := NewSchemaConnector(base, defaultSchema)
	if err != nil {
		return nil, err
	}

	return &DB{
		DB:        sqlx.NewDb(sql.OpenDB(connector), "postgres"),
		connector: connector,
		logger:    log,
	}, nil
}

// DefaultSchema returns the shared schema that holds the tenant registry.
func (db *DB) DefaultSchema() string {
	return db.connector.DefaultSchema()
}

// ObserveSchemaResets counts failed search_path resets on c.
func (db *DB) ObserveSchemaResets(c prometheus.Counter) {
	db.resetFailures = c
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}

// Transaction executes a function within a transaction
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
