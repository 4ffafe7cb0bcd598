package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
	"time"

	"github.com/protocolo/protocolo-backend/internal/auth/jwt"
	"github.com/protocolo/protocolo-backend/internal/auth/repository"
	tenancyrepo "github.com/protocolo/protocolo-backend/internal/tenancy/repository"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/metrics"
	"golang.org/x/crypto/bcrypt"
)

// Login kinds reported to metrics
const (
	KindTenant     = "tenant"
	KindSuperAdmin = "super_admin"
)

// dummyHash is compared when the login is unknown so that unknown users and
// wrong passwords take the same time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("protocolo-dummy-password"), bcrypt.DefaultCost)

// Authenticator resolves a client code to a tenant schema, verifies the
// user's credentials inside that schema and issues a token carrying it.
type Authenticator struct {
	db          *database.DB
	registry    *tenancyrepo.RegistryRepository
	credentials *repository.CredentialRepository
	jwtManager  *jwt.Manager
	superAdmin  config.SuperAdminConfig
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(
	db *database.DB,
	registry *tenancyrepo.RegistryRepository,
	credentials *repository.CredentialRepository,
	jwtManager *jwt.Manager,
	superAdmin config.SuperAdminConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *Authenticator {
	return &Authenticator{
		db:          db,
		registry:    registry,
		credentials: credentials,
		jwtManager:  jwtManager,
		superAdmin:  superAdmin,
		metrics:     m,
		logger:      log.WithComponent("authenticator"),
	}
}

// LoginRequest represents a login request. An empty client code selects the
// super administrator.
type LoginRequest struct {
	ClientCode string `json:"client_code" validate:"max=50"`
	Login      string `json:"login" validate:"required,max=100"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
	User        *UserInfo `json:"user"`
}

// UserInfo describes the authenticated principal
type UserInfo struct {
	ID         int64  `json:"id"`
	Login      string `json:"login"`
	Nome       string `json:"nome,omitempty"`
	Role       string `json:"role"`
	ClientCode string `json:"client_code,omitempty"`
	Schema     string `json:"schema,omitempty"`
	Orgao      string `json:"orgao,omitempty"`
}

// Login authenticates a user and returns an access token
func (a *Authenticator) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.ClientCode == "" {
		return a.loginSuperAdmin(req)
	}

	resp, err := a.loginTenant(ctx, req)
	if err != nil {
		a.metrics.RecordLogin(KindTenant, metrics.OutcomeFailure)
		return nil, err
	}
	a.metrics.RecordLogin(KindTenant, metrics.OutcomeSuccess)
	return resp, nil
}

// secretEqual compares fixed-size digests so the comparison time does not
// depend on the length of the configured secret.
func secretEqual(given, want string) bool {
	g := sha256.Sum256([]byte(given))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}

func (a *Authenticator) loginSuperAdmin(req *LoginRequest) (*LoginResponse, error) {
	loginOK := secretEqual(req.Login, a.superAdmin.Login)
	passwordOK := secretEqual(req.Password, a.superAdmin.Password)
	if a.superAdmin.Password == "" || !loginOK || !passwordOK {
		a.metrics.RecordLogin(KindSuperAdmin, metrics.OutcomeFailure)
		a.logger.Warn().Str("login", req.Login).Msg("super admin login rejected")
		return nil, errors.InvalidCredentials()
	}

	token, err := a.jwtManager.GenerateToken(&jwt.Subject{
		ID:       actor.SuperAdminSubject,
		Username: a.superAdmin.Login,
		Role:     actor.RoleSuperAdmin,
	})
	if err != nil {
		a.metrics.RecordLogin(KindSuperAdmin, metrics.OutcomeFailure)
		return nil, errors.Internal("failed to generate token")
	}

	a.metrics.RecordLogin(KindSuperAdmin, metrics.OutcomeSuccess)
	return &LoginResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
		User:        &UserInfo{Login: a.superAdmin.Login, Role: actor.RoleSuperAdmin},
	}, nil
}

func (a *Authenticator) loginTenant(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	t, err := a.registry.GetByClientCode(ctx, req.ClientCode)
	if err != nil || !t.IsActive {
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			a.logger.Error().Err(err).Str("client_code", req.ClientCode).Msg("tenant registry lookup failed")
		}
		bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, errors.InvalidTenantCode()
	}

	var cred *repository.Credential
	err = a.db.InSchema(ctx, t.SchemaName, func(ctx context.Context) error {
		c, err := a.credentials.GetByLogin(ctx, req.Login)
		if errors.Is(err, errors.ErrNotFound) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return errors.InvalidCredentials()
		}
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)) != nil {
			return errors.InvalidCredentials()
		}
		cred = c
		return nil
	})
	if err != nil {
		if !errors.Is(err, errors.ErrInvalidCredentials) {
			a.logger.Error().Err(err).Str("schema", t.SchemaName).Msg("credential lookup failed")
		}
		return nil, errors.InvalidCredentials()
	}

	token, err := a.jwtManager.GenerateToken(&jwt.Subject{
		ID:         strconv.FormatInt(cred.ID, 10),
		Username:   cred.Login,
		Role:       cred.Role,
		Schema:     t.SchemaName,
		ClientCode: t.ClientCode,
	})
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	a.logger.Info().Str("login", cred.Login).Str("schema", t.SchemaName).Msg("user logged in")

	return &LoginResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
		User: &UserInfo{
			ID:         cred.ID,
			Login:      cred.Login,
			Nome:       cred.Nome,
			Role:       cred.Role,
			ClientCode: t.ClientCode,
			Schema:     t.SchemaName,
			Orgao:      t.Name,
		},
	}, nil
}
