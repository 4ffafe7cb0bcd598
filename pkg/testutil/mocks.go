package testutil

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

var mockSeq atomic.Int64

// MockDB is a database.DB whose single connection is a sqlmock, with the
// schema interceptor in front of it. Every statement therefore shows up in
// the mock preceded by its SET search_path.
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

type mockConnector struct {
	dsn string
	drv driver.Driver
}

func (c mockConnector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.dsn) }
func (c mockConnector) Driver() driver.Driver                        { return c.drv }

// NewMockDB creates a new mock database for unit testing.
//
// Usage:
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectBegin()
//	mockDB.ExpectQueryIn("alpha", "SELECT id FROM protocolos").WillReturnRows(...)
//	mockDB.ExpectCommit()
//
//	repo := repository.NewProtocolRepository(mockDB.DB)
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	dsn := fmt.Sprintf("sqlmock_%d", mockSeq.Add(1))
	raw, mock, err := sqlmock.NewWithDSN(dsn)
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db, err := database.NewFromConnector(mockConnector{dsn: dsn, drv: raw.Driver()}, tenant.DefaultSchema, logger.Nop())
	if err != nil {
		t.Fatalf("failed to wrap sqlmock: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
		raw.Close()
	})

	return &MockDB{DB: db, Mock: mock}
}

// SearchPath returns the statement the interceptor issues for schema.
func SearchPath(schema string) string {
	if schema == tenant.DefaultSchema {
		return fmt.Sprintf(`SET search_path TO "%s"`, schema)
	}
	return fmt.Sprintf(`SET search_path TO "%s", "%s"`, schema, tenant.DefaultSchema)
}

// ExpectSearchPath expects the interceptor's SET for schema.
func (m *MockDB) ExpectSearchPath(schema string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(SearchPath(schema))).
		WithoutArgs().
		WillReturnResult(sqlmock.NewResult(0, 0))
}

// ExpectQueryIn expects the search path switch to schema followed by query.
func (m *MockDB) ExpectQueryIn(schema, query string) *sqlmock.ExpectedQuery {
	m.ExpectSearchPath(schema)
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExecIn expects the search path switch to schema followed by query.
func (m *MockDB) ExpectExecIn(schema, query string) *sqlmock.ExpectedExec {
	m.ExpectSearchPath(schema)
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectBegin sets up an expected transaction begin
func (m *MockDB) ExpectBegin() *sqlmock.ExpectedBegin {
	return m.Mock.ExpectBegin()
}

// ExpectCommit sets up an expected commit
func (m *MockDB) ExpectCommit() *sqlmock.ExpectedCommit {
	return m.Mock.ExpectCommit()
}

// ExpectRollback sets up an expected rollback
func (m *MockDB) ExpectRollback() *sqlmock.ExpectedRollback {
	return m.Mock.ExpectRollback()
}

// ExpectReset expects a pinned connection to be put back on the default schema.
func (m *MockDB) ExpectReset() *sqlmock.ExpectedExec {
	return m.ExpectSearchPath(tenant.DefaultSchema)
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime is a matcher for any time.Time value
type AnyTime struct{}

// Match satisfies the sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// MockPublisher is a mock event publisher for testing
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	Err             error
}

// PublishedEvent represents an event that was published
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

// Publish records an event for later verification
func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{
		Type:    eventType,
		Payload: payload,
	})
	return m.Err
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.PublishedEvents...)
}

// AssertEventPublished checks if an event of the given type was published
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	for _, e := range m.Events() {
		if e.Type == eventType {
			return
		}
	}
	t.Errorf("expected event %q to be published, but it wasn't", eventType)
}

// AssertNoEventsPublished checks that no events were published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if events := m.Events(); len(events) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(events), events)
	}
}
