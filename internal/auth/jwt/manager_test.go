package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/protocolo/protocolo-backend/pkg/config"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(expiry time.Duration) *Manager {
	return NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: expiry,
		Issuer:       "protocolo",
	})
}

func TestManager_RoundTrip(t *testing.T) {
	m := newManager(time.Hour)

	token, err := m.GenerateToken(&Subject{
		ID:         "42",
		Username:   "admin",
		Role:       "admin",
		Schema:     "alpha",
		ClientCode: "alpha",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)

	claims, err := m.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alpha", claims.Schema)
	assert.Equal(t, "alpha", claims.ClientCode)
	assert.Equal(t, int64(42), claims.UserID())
	assert.NotEmpty(t, claims.ID)

	a := claims.Actor()
	assert.Equal(t, "admin", a.Login)
	assert.Equal(t, "alpha", a.Schema)
}

func TestManager_SuperAdminHasNoSchema(t *testing.T) {
	m := newManager(time.Hour)

	token, err := m.GenerateToken(&Subject{ID: "super_admin", Role: "super_admin"})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, claims.Schema)
	assert.Equal(t, int64(0), claims.UserID())
	assert.True(t, claims.Actor().IsSuperAdmin())
	assert.Equal(t, "super_admin", claims.Actor().Login)
}

func TestManager_ExpiredToken(t *testing.T) {
	m := newManager(-time.Minute)

	token, err := m.GenerateToken(&Subject{ID: "1", Role: "user", Schema: "alpha"})
	require.NoError(t, err)

	_, err = m.ValidateToken(token.AccessToken)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	other := NewManager(&config.JWTConfig{Secret: "other", AccessExpiry: time.Hour, Issuer: "protocolo"})
	token, err := other.GenerateToken(&Subject{ID: "1", Role: "admin", Schema: "beta"})
	require.NoError(t, err)

	_, err = newManager(time.Hour).ValidateToken(token.AccessToken)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Schema: "beta", Role: "admin"})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager(time.Hour).ValidateToken(s)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_RejectsGarbage(t *testing.T) {
	_, err := newManager(time.Hour).ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}
