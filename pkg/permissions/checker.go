// Package permissions maps token roles to permissions and checks them with
// wildcard support.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "protocolos.*")
//   - "resource.action" - Specific action (e.g., "protocolos.read")
package permissions

import (
	"strings"

	"github.com/protocolo/protocolo-backend/pkg/actor"
)

const (
	TenantsManage = "tenants.manage"

	ProtocolsRead   = "protocolos.read"
	ProtocolsCreate = "protocolos.create"
	ProtocolsUpdate = "protocolos.update"
	ProtocolsDelete = "protocolos.delete"
	ProtocolsMove   = "protocolos.move"

	AttachmentsRead   = "anexos.read"
	AttachmentsCreate = "anexos.create"
	AttachmentsDelete = "anexos.delete"

	StaffRead = "servidores.read"

	UsersManage = "usuarios.manage"
)

var rolePermissions = map[string][]string{
	// The super admin only operates on the registry; it has no tenant schema.
	actor.RoleSuperAdmin: {"tenants.*"},
	actor.RoleAdmin:      {"protocolos.*", "anexos.*", StaffRead, "usuarios.*"},
	actor.RolePadrao:     {"protocolos.*", "anexos.*", StaffRead},
	actor.RoleUser: {
		ProtocolsRead, ProtocolsCreate, ProtocolsMove,
		AttachmentsRead, AttachmentsCreate,
		StaffRead,
	},
}

// ForRole returns the permissions granted to role (nil for unknown roles).
func ForRole(role string) []string {
	return rolePermissions[role]
}

// RoleHas checks a single permission for role.
func RoleHas(role, required string) bool {
	return HasPermission(ForRole(role), required)
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "protocolos.*" matches "protocolos.read", "protocolos.delete", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
