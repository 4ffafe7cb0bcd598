package consumers

import (
	"context"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/staff/domain"
	"github.com/protocolo/protocolo-backend/internal/staff/service"
	tenancyrepo "github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
)

// QueueName is the queue the directory feed is consumed from
const QueueName = "protocolo-api.rh-events"

// Event outcomes beyond success/failure
const (
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
)

// DirectoryConsumer keeps each tenant's servidores table in sync with the
// HR feed. The payload names the tenant by client code; the schema always
// comes from the registry.
type DirectoryConsumer struct {
	db       *database.DB
	registry *tenancyrepo.RegistryRepository
	staff    *service.StaffService
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewDirectoryConsumer creates a new directory consumer
func NewDirectoryConsumer(
	db *database.DB,
	registry *tenancyrepo.RegistryRepository,
	staff *service.StaffService,
	m *metrics.Metrics,
	log *logger.Logger,
) *DirectoryConsumer {
	return &DirectoryConsumer{
		db:       db,
		registry: registry,
		staff:    staff,
		metrics:  m,
		logger:   log.WithComponent("directory_consumer"),
	}
}

// Register subscribes consumer to the HR exchange and routes staff events here
func (c *DirectoryConsumer) Register(consumer *messaging.Consumer) error {
	if err := consumer.Subscribe(messaging.ExchangeHREvents, "rh.servidor.#"); err != nil {
		return err
	}
	c.Handle(consumer)
	return nil
}

// Handle registers the event handlers without touching the broker topology
func (c *DirectoryConsumer) Handle(consumer *messaging.Consumer) {
	consumer.RegisterHandler(messaging.EventStaffUpserted, c.handleStaffUpserted)
}

func (c *DirectoryConsumer) handleStaffUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.StaffUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.metrics.RecordEvent(event.Type, OutcomeInvalid)
		c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed staff event")
		return nil
	}

	t, err := c.registry.GetByClientCode(ctx, data.ClientCode)
	if errors.Is(err, errors.ErrNotFound) || (err == nil && !t.IsActive) {
		c.metrics.RecordEvent(event.Type, OutcomeSkipped)
		c.logger.Warn().
			Str("client_code", data.ClientCode).
			Str("matricula", data.Matricula).
			Msg("staff event for unknown or inactive tenant")
		return nil
	}
	if err != nil {
		c.metrics.RecordEvent(event.Type, metrics.OutcomeFailure)
		return err
	}

	servidor := &domain.Servidor{
		Matricula:          strings.TrimSpace(data.Matricula),
		Nome:               strings.TrimSpace(data.Nome),
		Lotacao:            optional(data.Lotacao),
		Cargo:              optional(data.Cargo),
		UnidadeDeExercicio: optional(data.UnidadeDeExercicio),
	}

	err = c.db.InSchema(ctx, t.SchemaName, func(ctx context.Context) error {
		return c.staff.Upsert(ctx, servidor)
	})
	if errors.Is(err, errors.ErrValidation) {
		c.metrics.RecordEvent(event.Type, OutcomeInvalid)
		c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("dropping incomplete staff event")
		return nil
	}
	if err != nil {
		c.metrics.RecordEvent(event.Type, metrics.OutcomeFailure)
		return err
	}

	c.metrics.RecordEvent(event.Type, metrics.OutcomeSuccess)
	c.logger.Debug().
		Str("schema", t.SchemaName).
		Str("matricula", servidor.Matricula).
		Msg("staff directory entry upserted")
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
