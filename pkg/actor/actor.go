// Package actor identifies the principal performing a request. It is filled
// from verified token claims by the auth middleware and read by services for
// ownership ("responsavel") and audit fields.
package actor

import (
	"context"
	"fmt"
)

// Role names carried in tokens.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RolePadrao     = "padrao"
	RoleUser       = "user"
)

// SuperAdminSubject is the token subject of the registry-only super administrator.
const SuperAdminSubject = "super_admin"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// UserID is the row id in the tenant's usuarios table; zero for the super admin.
	UserID int64 `json:"user_id"`

	// Login is the user's login name, recorded as "responsavel" on protocols.
	Login string `json:"login"`

	Role string `json:"role"`

	// Schema is the tenant schema taken from the token; empty for the super admin.
	Schema string `json:"schema,omitempty"`
}

// IsSuperAdmin reports whether the actor is the registry operator.
func (a *Actor) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Schema == "" {
		return fmt.Sprintf("%s (%s)", a.Login, a.Role)
	}
	return fmt.Sprintf("%s@%s (%s)", a.Login, a.Schema, a.Role)
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// LoginOr returns the actor's login, or fallback for system operations.
func LoginOr(ctx context.Context, fallback string) string {
	if a := FromContext(ctx); a != nil && a.Login != "" {
		return a.Login
	}
	return fallback
}
