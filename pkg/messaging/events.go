package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Tenant lifecycle
	EventTenantProvisioned   = "tenant.provisioned"
	EventTenantDeleted       = "tenant.deleted"
	EventTenantStatusChanged = "tenant.status.changed"

	// Protocols
	EventProtocolCreated       = "protocolo.created"
	EventProtocolStatusChanged = "protocolo.status.changed"
	EventProtocolDeleted       = "protocolo.deleted"

	// Staff directory feed (published by the HR system)
	EventStaffUpserted = "rh.servidor.upserted"
)

// Exchange names
const (
	ExchangeTenantEvents   = "tenant.events"
	ExchangeProtocolEvents = "protocolo.events"
	ExchangeHREvents       = "rh.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// TenantProvisionedEvent is published after a new tenant schema is ready.
type TenantProvisionedEvent struct {
	TenantID   int64  `json:"tenant_id"`
	Name       string `json:"name"`
	ClientCode string `json:"client_code"`
	SchemaName string `json:"schema_name"`
}

// TenantDeletedEvent is published after a tenant schema was dropped.
type TenantDeletedEvent struct {
	TenantID   int64  `json:"tenant_id"`
	ClientCode string `json:"client_code"`
	SchemaName string `json:"schema_name"`
}

// TenantStatusChangedEvent is published when a tenant is activated or deactivated.
type TenantStatusChangedEvent struct {
	TenantID   int64  `json:"tenant_id"`
	ClientCode string `json:"client_code"`
	IsActive   bool   `json:"is_active"`
}

// ProtocolCreatedEvent carries no personal data; consumers fetch details if they need them.
type ProtocolCreatedEvent struct {
	ClientCode  string `json:"client_code"`
	ProtocolID  int64  `json:"protocol_id"`
	Numero      string `json:"numero"`
	Status      string `json:"status"`
	Responsavel string `json:"responsavel"`
}

// ProtocolStatusChangedEvent is published for every recorded movement.
type ProtocolStatusChangedEvent struct {
	ClientCode  string `json:"client_code"`
	ProtocolID  int64  `json:"protocol_id"`
	Numero      string `json:"numero"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Responsavel string `json:"responsavel"`
	ChangedBy   string `json:"changed_by"`
}

// ProtocolDeletedEvent is published after a protocol and its dependents are removed.
type ProtocolDeletedEvent struct {
	ClientCode string `json:"client_code"`
	ProtocolID int64  `json:"protocol_id"`
	Numero     string `json:"numero"`
}

// StaffUpsertedEvent feeds the per-tenant staff directory. The target tenant
// is named by client code and resolved through the registry.
type StaffUpsertedEvent struct {
	ClientCode         string `json:"client_code"`
	Matricula          string `json:"matricula"`
	Nome               string `json:"nome"`
	Lotacao            string `json:"lotacao"`
	Cargo              string `json:"cargo"`
	UnidadeDeExercicio string `json:"unidade_de_exercicio"`
}
