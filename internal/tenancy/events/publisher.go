package events

import (
	"context"

	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
)

// TenantEventPublisher publishes tenant lifecycle events
type TenantEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewTenantEventPublisher creates a new tenant event publisher. A nil
// publisher drops every event.
func NewTenantEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *TenantEventPublisher {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TenantEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishProvisioned publishes a tenant provisioned event
func (p *TenantEventPublisher) PublishProvisioned(ctx context.Context, t *domain.Tenant) {
	data := messaging.TenantProvisionedEvent{
		TenantID:   t.ID,
		Name:       t.Name,
		ClientCode: t.ClientCode,
		SchemaName: t.SchemaName,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTenantProvisioned, data); err != nil {
		p.logger.Error().Err(err).Str("client_code", t.ClientCode).Msg("failed to publish tenant provisioned event")
	}
}

// PublishDeleted publishes a tenant deleted event
func (p *TenantEventPublisher) PublishDeleted(ctx context.Context, t *domain.Tenant) {
	data := messaging.TenantDeletedEvent{
		TenantID:   t.ID,
		ClientCode: t.ClientCode,
		SchemaName: t.SchemaName,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTenantDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("client_code", t.ClientCode).Msg("failed to publish tenant deleted event")
	}
}

// PublishStatusChanged publishes a tenant activation change
func (p *TenantEventPublisher) PublishStatusChanged(ctx context.Context, t *domain.Tenant) {
	data := messaging.TenantStatusChangedEvent{
		TenantID:   t.ID,
		ClientCode: t.ClientCode,
		IsActive:   t.IsActive,
	}

	if err := p.publisher.Publish(ctx, messaging.EventTenantStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("client_code", t.ClientCode).Msg("failed to publish tenant status event")
	}
}
