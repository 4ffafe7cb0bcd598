package service

import (
	"context"

	protocoldomain "github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
)

// ProtocolFinder looks a protocol up by number in the schema carried by ctx.
type ProtocolFinder interface {
	GetByNumero(ctx context.Context, numero string) (*protocoldomain.Protocol, error)
}

// Locator answers the public lookup, which has no tenant of its own: it
// scans the active tenants in registration order and returns the first
// match. Cost is linear in the number of tenants.
type Locator struct {
	db       *database.DB
	registry *repository.RegistryRepository
	finder   ProtocolFinder
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewLocator creates a new cross-tenant locator
func NewLocator(
	db *database.DB,
	registry *repository.RegistryRepository,
	finder ProtocolFinder,
	m *metrics.Metrics,
	log *logger.Logger,
) *Locator {
	return &Locator{
		db:       db,
		registry: registry,
		finder:   finder,
		metrics:  m,
		logger:   log.WithComponent("locator"),
	}
}

// FindProtocol returns the protocol numbered numero and its tenant. A tenant
// whose lookup fails is logged and skipped; the caller only ever sees a
// match or NotFound.
func (l *Locator) FindProtocol(ctx context.Context, numero string) (*protocoldomain.Protocol, *domain.Tenant, error) {
	tenants, err := l.registry.ListActive(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to list active tenants")
		l.metrics.RecordLocatorScan(false)
		return nil, nil, errors.NotFound("protocol")
	}

	for _, t := range tenants {
		var p *protocoldomain.Protocol
		err := l.db.InSchema(ctx, t.SchemaName, func(ctx context.Context) error {
			var err error
			p, err = l.finder.GetByNumero(ctx, numero)
			return err
		})
		switch {
		case err == nil:
			l.metrics.RecordLocatorScan(true)
			return p, t, nil
		case errors.Is(err, errors.ErrNotFound):
			continue
		default:
			l.metrics.RecordLocatorTenantError()
			l.logger.Warn().Err(err).
				Str("client_code", t.ClientCode).
				Str("schema_name", t.SchemaName).
				Msg("skipping tenant in protocol lookup")
		}
	}

	l.metrics.RecordLocatorScan(false)
	return nil, nil, errors.NotFound("protocol")
}
