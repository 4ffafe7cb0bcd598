package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container     *PostgresContainer
	RawDB         *sqlx.DB
	DB            *database.DB
	TenantManager *TenantManager
	Fixtures      *FixtureFactory
	Logger        *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain; a nil suite makes every test that calls Require skip,
// so packages still pass on machines without Docker.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    suite = testutil.MustIntegrationSuite()
//	    code := m.Run()
//	    suite.Cleanup(context.Background())
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    suite.Require(t)
//	    alpha := suite.SetupTenant(t, ctx, "alpha")
//	    // ... run tests with suite.TenantContext(alpha)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, tenant.DefaultSchema, log)
	if err != nil {
		return nil, err
	}

	tm := NewTenantManager(db)
	if err := tm.Bootstrap(ctx); err != nil {
		wrappedDB.Close()
		return nil, err
	}

	return &IntegrationSuite{
		Container:     container,
		RawDB:         db,
		DB:            wrappedDB,
		TenantManager: tm,
		Fixtures:      NewFixtureFactory(),
		Logger:        log,
	}, nil
}

// MustIntegrationSuite starts the shared suite for TestMain. It returns nil
// when running with -short, when PROTOCOLO_SKIP_INTEGRATION is set, or when
// no container runtime is reachable.
func MustIntegrationSuite() *IntegrationSuite {
	if os.Getenv("PROTOCOLO_SKIP_INTEGRATION") != "" || shortRequested() {
		return nil
	}
	s, err := NewIntegrationSuite(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration tests disabled: %v\n", err)
		return nil
	}
	return s
}

func shortRequested() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-test.short" || arg == "-test.short=true" {
			return true
		}
	}
	return false
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		// testcontainers panics when it cannot find a Docker host.
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("container runtime unavailable: %v", r)
			}
		}()

		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Require skips t when no integration suite is available.
func (s *IntegrationSuite) Require(t *testing.T) {
	t.Helper()
	if s == nil {
		t.Skip("integration suite not available")
	}
}

// NewDB opens an additional interceptor-wrapped pool, e.g. with a single
// connection to force connection reuse across tenants.
func (s *IntegrationSuite) NewDB(t *testing.T, maxOpenConns int) *database.DB {
	t.Helper()
	db, err := database.NewWithDSN(s.Container.DSN, tenant.DefaultSchema, s.Logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	t.Cleanup(func() { db.Close() })
	return db
}

// SetupTenant creates a tenant schema for a specific test.
// Each test should use its own tenant for isolation.
func (s *IntegrationSuite) SetupTenant(t *testing.T, ctx context.Context, name string) *TestTenant {
	t.Helper()

	tt, err := s.TenantManager.CreateTenant(ctx, name)
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}

	t.Cleanup(func() {
		if err := s.TenantManager.DropTenant(ctx, tt); err != nil {
			t.Logf("warning: failed to drop tenant %s: %v", tt.SchemaName, err)
		}
	})

	return tt
}

// TenantContext returns a context with the tenant set
func (s *IntegrationSuite) TenantContext(tt *TestTenant) context.Context {
	return WithTestTenant(context.Background(), tt)
}

// Cleanup cleans up all test resources and stops the shared container.
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	if s == nil {
		return nil
	}
	err := s.TenantManager.Cleanup(ctx)
	s.DB.Close()
	TerminateContainer(ctx)
	return err
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
