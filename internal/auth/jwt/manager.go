package jwt

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

// Claims represents the JWT claims. Schema is the only source of the tenant
// a request runs against; it is empty for the super administrator.
type Claims struct {
	jwt.RegisteredClaims
	Schema     string `json:"schema,omitempty"`
	ClientCode string `json:"client_code,omitempty"`
	Role       string `json:"role"`
	Username   string `json:"username,omitempty"`
}

// UserID returns the numeric subject, or zero for the super administrator.
func (c *Claims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Actor converts the verified claims into the acting principal.
func (c *Claims) Actor() *actor.Actor {
	login := c.Username
	if login == "" && c.Subject == actor.SuperAdminSubject {
		login = actor.SuperAdminSubject
	}
	return &actor.Actor{
		UserID: c.UserID(),
		Login:  login,
		Role:   c.Role,
		Schema: c.Schema,
	}
}

// Manager handles JWT operations
type Manager struct {
	config *config.JWTConfig
}

// NewManager creates a new JWT manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg}
}

// Subject is the identity a token is issued for.
type Subject struct {
	ID         string
	Username   string
	Role       string
	Schema     string
	ClientCode string
}

// Token is a signed access token
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// GenerateToken signs an access token for subject
func (m *Manager) GenerateToken(subject *Subject) (*Token, error) {
	now := time.Now()
	expiry := now.Add(m.config.AccessExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   subject.ID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Schema:     subject.Schema,
		ClientCode: subject.ClientCode,
		Role:       subject.Role,
		Username:   subject.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiry,
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates an access token and returns the claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}

// GetTokenExpiry returns the access token expiry duration
func (m *Manager) GetTokenExpiry() time.Duration {
	return m.config.AccessExpiry
}
