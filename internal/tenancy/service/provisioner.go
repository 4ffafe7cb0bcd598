package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/internal/tenancy/events"
	"github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// Provisioning steps reported by ProvisioningFailed.
const (
	StepCreateSchema = "create_schema"
	StepCreateTables = "create_tables"
	StepRegister     = "register"
)

// Provisioner creates and removes tenants. Registry writes run in one
// transaction holding the registry lock, so a schema and its registry row
// appear and disappear together.
type Provisioner struct {
	db        *database.DB
	registry  *repository.RegistryRepository
	publisher *events.TenantEventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(
	db *database.DB,
	registry *repository.RegistryRepository,
	publisher *events.TenantEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *Provisioner {
	return &Provisioner{
		db:        db,
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithComponent("provisioner"),
	}
}

// Bootstrap creates the registry table.
func (p *Provisioner) Bootstrap(ctx context.Context) error {
	return p.registry.Bootstrap(ctx)
}

// List returns every registered tenant.
func (p *Provisioner) List(ctx context.Context) ([]*domain.Tenant, error) {
	return p.registry.List(ctx)
}

// Create provisions a tenant. When the client code is already registered
// the existing tenant is returned with alreadyExisted set and nothing is
// changed.
func (p *Provisioner) Create(ctx context.Context, req *domain.CreateTenantRequest) (*domain.Tenant, bool, error) {
	if err := validateCreate(req); err != nil {
		p.metrics.RecordProvisioning("create", metrics.OutcomeFailure)
		return nil, false, err
	}

	var (
		t       *domain.Tenant
		existed bool
	)
	err := p.db.WithTx(ctx, func(ctx context.Context) error {
		if err := p.registry.Lock(ctx); err != nil {
			return errors.ProvisioningFailed(StepRegister, err)
		}

		existing, err := p.registry.GetByClientCode(ctx, req.ClientCode)
		if err == nil {
			t, existed = existing, true
			return nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return errors.ProvisioningFailed(StepRegister, err)
		}

		owner, err := p.registry.GetBySchemaName(ctx, req.SchemaName)
		if err == nil {
			return errors.Conflict("schema already registered").
				WithDetails(map[string]string{"schema_name": "already used by tenant " + owner.ClientCode})
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return errors.ProvisioningFailed(StepRegister, err)
		}

		q := p.db.Executor(ctx)
		if _, err := q.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(req.SchemaName)); err != nil {
			return errors.ProvisioningFailed(StepCreateSchema, err)
		}

		stmts, err := database.RenderTenantDDL(req.SchemaName)
		if err != nil {
			return errors.ProvisioningFailed(StepCreateTables, err)
		}
		for _, stmt := range stmts {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return errors.ProvisioningFailed(StepCreateTables, err)
			}
		}

		t = &domain.Tenant{
			Name:       strings.TrimSpace(req.Name),
			ClientCode: req.ClientCode,
			SchemaName: req.SchemaName,
		}
		if err := p.registry.Insert(ctx, t); err != nil {
			if errors.Is(err, errors.ErrConflict) {
				return err
			}
			return errors.ProvisioningFailed(StepRegister, err)
		}
		return nil
	})
	if err != nil {
		p.metrics.RecordProvisioning("create", metrics.OutcomeFailure)
		p.logger.Error().Err(err).
			Str("client_code", req.ClientCode).
			Str("schema_name", req.SchemaName).
			Msg("tenant provisioning failed")
		return nil, false, err
	}

	if existed {
		p.metrics.RecordProvisioning("create", metrics.OutcomeExisting)
		p.logger.Info().Str("client_code", t.ClientCode).Msg("tenant already registered")
		return t, true, nil
	}

	p.metrics.RecordProvisioning("create", metrics.OutcomeSuccess)
	p.logger.Info().
		Int64("tenant_id", t.ID).
		Str("client_code", t.ClientCode).
		Str("schema_name", t.SchemaName).
		Msg("tenant provisioned")
	p.publisher.PublishProvisioned(ctx, t)
	return t, false, nil
}

// Delete drops the tenant schema with everything in it and removes the
// registry row, both or neither.
func (p *Provisioner) Delete(ctx context.Context, id int64) error {
	var t *domain.Tenant
	err := p.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = p.registry.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tenant.ValidateSchemaName(t.SchemaName); err != nil {
			return unsafeIdentifier(err)
		}
		if _, err := p.db.Executor(ctx).ExecContext(ctx,
			"DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(t.SchemaName)+" CASCADE"); err != nil {
			return fmt.Errorf("failed to drop schema %s: %w", t.SchemaName, err)
		}
		return p.registry.Delete(ctx, id)
	})
	if err != nil {
		p.metrics.RecordProvisioning("delete", metrics.OutcomeFailure)
		return err
	}

	p.metrics.RecordProvisioning("delete", metrics.OutcomeSuccess)
	p.logger.Info().
		Int64("tenant_id", t.ID).
		Str("client_code", t.ClientCode).
		Str("schema_name", t.SchemaName).
		Msg("tenant deleted")
	p.publisher.PublishDeleted(ctx, t)
	return nil
}

// SetActive enables or disables a tenant. Inactive tenants cannot log in
// and are skipped by the public lookup; their data stays in place.
func (p *Provisioner) SetActive(ctx context.Context, id int64, active bool) (*domain.Tenant, error) {
	var t *domain.Tenant
	err := p.db.WithTx(ctx, func(ctx context.Context) error {
		if err := p.registry.Lock(ctx); err != nil {
			return err
		}
		var err error
		t, err = p.registry.SetActive(ctx, id, active)
		return err
	})
	if err != nil {
		p.metrics.RecordProvisioning("set_active", metrics.OutcomeFailure)
		return nil, err
	}

	p.metrics.RecordProvisioning("set_active", metrics.OutcomeSuccess)
	p.logger.Info().Int64("tenant_id", t.ID).Bool("is_active", t.IsActive).Msg("tenant status changed")
	p.publisher.PublishStatusChanged(ctx, t)
	return t, nil
}

// Seed provisions the default tenants. Already registered ones are left alone.
func (p *Provisioner) Seed(ctx context.Context) ([]domain.ProvisionResult, error) {
	results := make([]domain.ProvisionResult, 0, len(domain.DefaultTenants))
	for _, def := range domain.DefaultTenants {
		req := def
		t, existed, err := p.Create(ctx, &req)
		if err != nil {
			return results, fmt.Errorf("seed %s: %w", req.ClientCode, err)
		}
		results = append(results, domain.ProvisionResult{Tenant: t, AlreadyExisted: existed})
	}
	return results, nil
}

func validateCreate(req *domain.CreateTenantRequest) error {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return errors.Validation(map[string]string{"name": "must not be empty"})
	case len(name) > 100:
		return errors.Validation(map[string]string{"name": "must be at most 100 characters"})
	}
	if err := tenant.ValidateClientCode(req.ClientCode); err != nil {
		return unsafeIdentifier(err)
	}
	if err := tenant.ValidateSchemaName(req.SchemaName); err != nil {
		return unsafeIdentifier(err)
	}
	return nil
}

func unsafeIdentifier(err error) error {
	var idErr *tenant.IdentifierError
	if errors.As(err, &idErr) {
		return errors.UnsafeIdentifier(idErr.Field, idErr.Reason)
	}
	return err
}
