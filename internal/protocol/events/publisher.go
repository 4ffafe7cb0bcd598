package events

import (
	"context"

	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// ProtocolEventPublisher publishes protocol lifecycle events. Publishing is
// best effort: the database change is already committed when it runs.
type ProtocolEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewProtocolEventPublisher creates a new protocol event publisher
func NewProtocolEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *ProtocolEventPublisher {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProtocolEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishCreated publishes a protocol created event
func (p *ProtocolEventPublisher) PublishCreated(ctx context.Context, pr *domain.Protocol) {
	clientCode, _ := tenant.ClientCode(ctx)

	data := messaging.ProtocolCreatedEvent{
		ClientCode:  clientCode,
		ProtocolID:  pr.ID,
		Numero:      pr.Numero,
		Status:      pr.Status,
		Responsavel: pr.ResponsavelOr(""),
	}

	if err := p.publisher.Publish(ctx, messaging.EventProtocolCreated, data); err != nil {
		p.logger.Error().Err(err).Int64("protocol_id", pr.ID).Msg("failed to publish protocol created event")
	}
}

// PublishStatusChanged publishes one movement.
func (p *ProtocolEventPublisher) PublishStatusChanged(ctx context.Context, pr *domain.Protocol, oldStatus, changedBy string) {
	clientCode, _ := tenant.ClientCode(ctx)

	data := messaging.ProtocolStatusChangedEvent{
		ClientCode:  clientCode,
		ProtocolID:  pr.ID,
		Numero:      pr.Numero,
		OldStatus:   oldStatus,
		NewStatus:   pr.Status,
		Responsavel: pr.ResponsavelOr(""),
		ChangedBy:   changedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProtocolStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Int64("protocol_id", pr.ID).Msg("failed to publish protocol status changed event")
	}
}

// PublishDeleted publishes a protocol deleted event
func (p *ProtocolEventPublisher) PublishDeleted(ctx context.Context, pr *domain.Protocol) {
	clientCode, _ := tenant.ClientCode(ctx)

	data := messaging.ProtocolDeletedEvent{
		ClientCode: clientCode,
		ProtocolID: pr.ID,
		Numero:     pr.Numero,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProtocolDeleted, data); err != nil {
		p.logger.Error().Err(err).Int64("protocol_id", pr.ID).Msg("failed to publish protocol deleted event")
	}
}
