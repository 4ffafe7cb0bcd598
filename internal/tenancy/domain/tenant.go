package domain

import "time"

// Tenant is one row of the registry: a client organization and the schema
// that holds its data.
type Tenant struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	ClientCode string    `db:"client_code" json:"client_code"`
	SchemaName string    `db:"schema_name" json:"schema_name"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CreateTenantRequest is the input of tenant provisioning.
type CreateTenantRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	ClientCode string `json:"client_code" validate:"required,client_code"`
	SchemaName string `json:"schema_name" validate:"required,max=63,schema_name"`
}

// SetActiveRequest toggles whether a tenant can log in and is searched by
// the public lookup.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// ProvisionResult tells the caller whether the tenant was created by this
// call or was already registered under the same code.
type ProvisionResult struct {
	Tenant         *Tenant `json:"tenant"`
	AlreadyExisted bool    `json:"already_existed"`
}

// DefaultTenants are provisioned by tenantctl init-db.
var DefaultTenants = []CreateTenantRequest{
	{Name: "Cliente Alpha", ClientCode: "alpha", SchemaName: "alpha"},
	{Name: "Cliente Beta", ClientCode: "beta", SchemaName: "beta"},
	{Name: "Cliente Gamma", ClientCode: "gamma", SchemaName: "gamma"},
	{Name: "Cliente Delta", ClientCode: "delta", SchemaName: "delta"},
	{Name: "Cliente Epsilon", ClientCode: "epsilon", SchemaName: "epsilon"},
}
