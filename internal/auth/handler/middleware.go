package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/auth/jwt"
	tenancydomain "github.com/protocolo/protocolo-backend/internal/tenancy/domain"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/httputil"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/permissions"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// TenantRegistry resolves the registry entry behind a token's schema claim.
type TenantRegistry interface {
	GetBySchemaName(ctx context.Context, schema string) (*tenancydomain.Tenant, error)
}

// Middleware turns a verified bearer token into the request's tenant
// context and actor.
type Middleware struct {
	jwtManager *jwt.Manager
	registry   TenantRegistry
	logger     *logger.Logger
}

// NewMiddleware creates the auth middleware
func NewMiddleware(jwtManager *jwt.Manager, registry TenantRegistry, log *logger.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		registry:   registry,
		logger:     log.WithComponent("auth_middleware"),
	}
}

// Authenticate validates the bearer token. The tenant schema comes from the
// token's schema claim only; X-Tenant-* headers are never consulted. The
// claim must still name an active registered tenant, so deactivating or
// deleting a tenant revokes its outstanding tokens.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.jwtManager.ValidateToken(parts[1])
		if err != nil {
			m.logger.Debug().Err(err).Msg("token validation failed")
			httputil.ErrorLocalized(w, r, err)
			return
		}

		ctx := r.Context()
		if claims.Schema != "" {
			if err := tenant.ValidateSchemaName(claims.Schema); err != nil {
				m.logger.Warn().Err(err).Str("subject", claims.Subject).Msg("token carries an unusable schema")
				httputil.ErrorLocalized(w, r, errors.TokenInvalid())
				return
			}
			if err := m.checkTenant(ctx, claims); err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}
			ctx = tenant.WithTenantContext(ctx, claims.Schema, claims.ClientCode)
		}

		a := claims.Actor()
		ctx = actor.WithActor(ctx, a)
		httputil.RecordActor(ctx, a)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// checkTenant runs before the tenant context is set, so the registry is read
// on the default schema.
func (m *Middleware) checkTenant(ctx context.Context, claims *jwt.Claims) error {
	t, err := m.registry.GetBySchemaName(ctx, claims.Schema)
	if errors.Is(err, errors.ErrNotFound) {
		m.logger.Warn().Str("subject", claims.Subject).Str("schema", claims.Schema).Msg("token schema is not registered")
		return errors.TokenInvalid()
	}
	if err != nil {
		m.logger.Error().Err(err).Str("schema", claims.Schema).Msg("tenant registry lookup failed")
		return errors.Internal("failed to verify tenant")
	}
	if !t.IsActive || (claims.ClientCode != "" && claims.ClientCode != t.ClientCode) {
		m.logger.Warn().Str("subject", claims.Subject).Str("schema", claims.Schema).Bool("is_active", t.IsActive).Msg("token tenant no longer valid")
		return errors.TokenInvalid()
	}
	return nil
}

// RequireTenant rejects principals without a tenant schema
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := tenant.Schema(r.Context()); err != nil {
			httputil.ErrorLocalized(w, r, errors.Forbidden("tenant context required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin rejects everyone but the registry operator
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actor.FromContext(r.Context()).IsSuperAdmin() {
			httputil.ErrorLocalized(w, r, errors.Forbidden("super admin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects principals whose role lacks permission
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actor.FromContext(r.Context())
			if a == nil || !permissions.RoleHas(a.Role, permission) {
				httputil.ErrorLocalized(w, r, errors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
