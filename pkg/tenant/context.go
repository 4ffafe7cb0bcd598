package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	tenantSchemaKey contextKey = "tenant_schema"
	tenantCodeKey   contextKey = "tenant_code"
)

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
)

// WithTenantContext adds the resolved tenant to the context.
// Called once per request by the auth middleware after the token is verified;
// the schema claim of that token is the only source of a tenant schema.
func WithTenantContext(ctx context.Context, schema, clientCode string) context.Context {
	ctx = context.WithValue(ctx, tenantSchemaKey, schema)
	if clientCode != "" {
		ctx = context.WithValue(ctx, tenantCodeKey, clientCode)
	}
	return ctx
}

// WithSchema pins a schema for every statement issued with the returned context.
func WithSchema(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, tenantSchemaKey, schema)
}

// Schema extracts the tenant schema name from context.
// Returns ErrNoTenantInContext if no schema was resolved for the request.
func Schema(ctx context.Context) (string, error) {
	schema, ok := ctx.Value(tenantSchemaKey).(string)
	if !ok || schema == "" {
		return "", ErrNoTenantInContext
	}
	return schema, nil
}

// SchemaOr returns the schema carried by ctx, or fallback when none was resolved.
func SchemaOr(ctx context.Context, fallback string) string {
	if schema, err := Schema(ctx); err == nil {
		return schema
	}
	return fallback
}

// ClientCode extracts the tenant business code from context, if known.
func ClientCode(ctx context.Context) (string, error) {
	code, ok := ctx.Value(tenantCodeKey).(string)
	if !ok || code == "" {
		return "", ErrNoTenantInContext
	}
	return code, nil
}
