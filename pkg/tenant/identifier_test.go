package tenant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/protocolo/protocolo-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchemaName(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		wantErr bool
	}{
		{"simple", "alpha", false},
		{"with digits and underscore", "cliente_02", false},
		{"max length", "a" + strings.Repeat("b", 62), false},
		{"empty", "", true},
		{"too long", "a" + strings.Repeat("b", 63), true},
		{"uppercase", "Alpha", true},
		{"leading digit", "1alpha", true},
		{"quote injection", `alpha"; DROP SCHEMA public CASCADE; --`, true},
		{"comma list", "alpha,public", true},
		{"whitespace", "alpha beta", true},
		{"dash", "alpha-beta", true},
		{"public is reserved", "public", true},
		{"information_schema is reserved", "information_schema", true},
		{"pg prefix is reserved", "pg_catalog", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tenant.ValidateSchemaName(tt.schema)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tenant.ErrUnsafeIdentifier))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateIdentifier_AllowsDefaultSchema(t *testing.T) {
	assert.NoError(t, tenant.ValidateIdentifier(tenant.DefaultSchema))
}

func TestValidateClientCode(t *testing.T) {
	assert.NoError(t, tenant.ValidateClientCode("alpha"))
	assert.NoError(t, tenant.ValidateClientCode("prefeitura-01"))

	err := tenant.ValidateClientCode("")
	require.Error(t, err)

	var idErr *tenant.IdentifierError
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, "client_code", idErr.Field)

	assert.Error(t, tenant.ValidateClientCode("alpha'--"))
	assert.Error(t, tenant.ValidateClientCode(strings.Repeat("a", 51)))
}

func TestSchemaContext(t *testing.T) {
	ctx := context.Background()

	_, err := tenant.Schema(ctx)
	assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)
	assert.Equal(t, tenant.DefaultSchema, tenant.SchemaOr(ctx, tenant.DefaultSchema))

	ctx = tenant.WithTenantContext(ctx, "alpha", "alpha")
	schema, err := tenant.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", schema)

	code, err := tenant.ClientCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", code)

	override := tenant.WithSchema(ctx, "beta")
	schema, err = tenant.Schema(override)
	require.NoError(t, err)
	assert.Equal(t, "beta", schema)

	schema, err = tenant.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", schema)
}
